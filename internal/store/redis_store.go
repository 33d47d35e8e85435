package store

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisStore is the Store implementation backed by a shared *redis.Client,
// constructed once at startup the way this stack's registrar client is
// constructed from an address with a ParseURL/NewClient fallback.
type RedisStore struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewRedisStore connects to addr (host:port), falling back from a full
// redis:// URL to a plain address the way this stack's registrar client
// does.
func NewRedisStore(addr, password string, logger zerolog.Logger) *RedisStore {
	var rdb *redis.Client
	if opts, err := redis.ParseURL(addr); err == nil {
		rdb = redis.NewClient(opts)
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		})
	}
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNotFound
	}
	return res, nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return s.rdb.HSet(ctx, key, values...).Err()
}

func (s *RedisStore) SAdd(ctx context.Context, key string, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

func (s *RedisStore) SRem(ctx context.Context, key string, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *RedisStore) RPush(ctx context.Context, key string, value string) error {
	return s.rdb.RPush(ctx, key, value).Err()
}

func (s *RedisStore) LPop(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) LRem(ctx context.Context, key string, value string) (int, error) {
	n, err := s.rdb.LRem(ctx, key, 0, value).Result()
	return int(n), err
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, seconds int64) error {
	return s.rdb.Expire(ctx, key, secondsToDuration(seconds)).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
