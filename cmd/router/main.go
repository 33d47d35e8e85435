package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oriontel/dialer-router/internal/api"
	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/auth"
	"github.com/oriontel/dialer-router/internal/config"
	"github.com/oriontel/dialer-router/internal/live"
	"github.com/oriontel/dialer-router/internal/repository"
	"github.com/oriontel/dialer-router/internal/router"
	"github.com/oriontel/dialer-router/internal/selector"
	"github.com/oriontel/dialer-router/internal/store"
	"github.com/oriontel/dialer-router/internal/wrapup"
	"github.com/oriontel/dialer-router/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("call_center", cfg.CallCenterID).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("starting dialer-router")

	redisStore := store.NewRedisStore(cfg.RedisAddr(), cfg.RedisPassword, log.Logger)
	repo := repository.New(redisStore, cfg.CallCenterID, log.Logger)
	rrSelector := selector.New(repo)
	mediaClient := ari.NewClient(cfg.ARIBaseURL(), cfg.ARIUsername, cfg.ARIPassword, cfg.ARIAppName)
	callRouter := router.New(repo, rrSelector, mediaClient, cfg.ARIAppName, cfg.WrapUpSeconds, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventSource := ari.NewEventSource(cfg.ARIHost, cfg.ARIPort, cfg.ARIUsername, cfg.ARIPassword, cfg.ARIAppName, log.Logger)
	go func() {
		if err := eventSource.Start(ctx, callRouter); err != nil {
			log.Error().Err(err).Msg("ari event source stopped")
		}
	}()

	wrapScheduler := wrapup.New(repo, callRouter, time.Second, log.Logger)
	go wrapScheduler.Start(ctx)

	liveHub := live.NewHub(log.Logger)
	go liveHub.Run()
	liveAggregator := live.NewAggregator(repo, liveHub, time.Second, cfg.LongWaitAlertSeconds, log.Logger)
	go liveAggregator.Start(ctx)
	liveHandler := live.NewHandler(liveHub, cfg.AllowedOrigins, log.Logger)

	queueHandler := api.NewQueueHandler(repo, log.Logger)
	agentHandler := api.NewAgentHandler(repo, callRouter, log.Logger)
	testEventHandler := api.NewTestEventHandler(callRouter, log.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Post("/test-events", testEventHandler.Inject)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.SkipAuth, log.Logger))

		r.Get("/live", liveHandler.ServeHTTP)

		r.Route("/queues", func(r chi.Router) {
			r.With(api.RequireAdmin).Post("/", queueHandler.CreateQueue)
			r.Get("/{queueId}", queueHandler.GetQueue)
		})

		r.Route("/agents", func(r chi.Router) {
			r.With(api.RequireAdmin).Post("/", agentHandler.CreateAgent)
			r.Get("/{agentId}", agentHandler.GetAgent)
			r.Post("/{agentId}/login", agentHandler.Login)
			r.Post("/{agentId}/logout", agentHandler.Logout)
			r.With(api.RequireSupervisorOrAdmin).Post("/{agentId}/reconcile", agentHandler.Reconcile)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down dialer-router...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"dialer-router"}`)
}
