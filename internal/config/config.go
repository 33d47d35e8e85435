package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	CallCenterID string

	ARIHost     string
	ARIPort     string
	ARIUsername string
	ARIPassword string
	ARIAppName  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	WrapUpSeconds         int
	LongWaitAlertSeconds  int
	SkipAuth              bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		CallCenterID: getEnv("CALL_CENTER_ID", "default"),

		ARIHost:     getEnv("ARI_HOST", "localhost"),
		ARIPort:     getEnv("ARI_PORT", "8088"),
		ARIUsername: getEnv("ARI_USERNAME", ""),
		ARIPassword: getEnv("ARI_PASSWORD", ""),
		ARIAppName:  getEnv("ARI_APP_NAME", "dialer"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SkipAuth: getEnv("SKIP_AUTH", "false") == "true",
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	wrapUpSeconds, err := strconv.Atoi(getEnv("WRAP_UP_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid WRAP_UP_SECONDS: %w", err)
	}
	config.WrapUpSeconds = wrapUpSeconds

	longWaitAlertSeconds, err := strconv.Atoi(getEnv("LONG_WAIT_ALERT_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid LONG_WAIT_ALERT_SECONDS: %w", err)
	}
	config.LongWaitAlertSeconds = longWaitAlertSeconds

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// RedisAddr returns the host:port pair for the redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// ARIBaseURL returns the base URL for ARI REST actions.
func (c *Config) ARIBaseURL() string {
	return fmt.Sprintf("http://%s:%s/ari", c.ARIHost, c.ARIPort)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
