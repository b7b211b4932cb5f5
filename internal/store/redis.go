package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/logger"
	"github.com/rafaeljc/muninn/internal/observability"
)

// Compile-time check that RedisStore implements UserStore.
var _ UserStore = (*RedisStore)(nil)

// RedisStore persists user containers as JSON strings in Redis, one key per
// identity cache key.
type RedisStore struct {
	logger    *slog.Logger
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an already-connected redis client.
func NewRedisStore(log *slog.Logger, client *redis.Client, keyPrefix string) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = "muninn:user"
	}
	return &RedisStore{logger: log, client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, key)
}

// Load fetches and decodes the container for key. Absent keys and
// undecodable payloads both return (nil, nil).
func (s *RedisStore) Load(ctx context.Context, key string) (*Container, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.StoreOps.WithLabelValues("redis", "load", "miss").Inc()
		return nil, nil
	}
	if err != nil {
		observability.StoreOps.WithLabelValues("redis", "load", "error").Inc()
		return nil, fmt.Errorf("failed to load user container %q: %w", key, err)
	}

	c := decodeContainer(raw)
	if c == nil {
		// Corrupted persisted data counts as a miss.
		s.logger.Warn("discarding undecodable user container", slog.String("key", key))
		observability.StoreOps.WithLabelValues("redis", "load", "corrupt").Inc()
		return nil, nil
	}

	observability.StoreOps.WithLabelValues("redis", "load", "ok").Inc()
	return c, nil
}

// Save stores the container under key, overwriting any previous value.
func (s *RedisStore) Save(ctx context.Context, key string, c *Container) error {
	raw, err := encodeContainer(c)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.redisKey(key), raw, 0).Err(); err != nil {
		observability.StoreOps.WithLabelValues("redis", "save", "error").Inc()
		return fmt.Errorf("failed to save user container %q: %w", key, err)
	}

	observability.StoreOps.WithLabelValues("redis", "save", "ok").Inc()
	return nil
}

// Delete removes the container for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		observability.StoreOps.WithLabelValues("redis", "delete", "error").Inc()
		return fmt.Errorf("failed to delete user container %q: %w", key, err)
	}
	observability.StoreOps.WithLabelValues("redis", "delete", "ok").Inc()
	return nil
}

// Close terminates the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Name identifies this component in readiness probes.
func (s *RedisStore) Name() string { return "redis" }

// Check pings the Redis server.
func (s *RedisStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewRedisClient initializes a Redis client from configuration, verifying
// connectivity with a bounded exponential-backoff ping loop before handing
// the client to the caller.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	log := logger.FromContext(ctx)
	backoff := cfg.PingBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.PingMaxRetries; attempt++ {
		initCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		pingErr := client.Ping(initCtx).Err()
		cancel()

		if pingErr == nil {
			log.Info("redis connection established", slog.Int("attempt", attempt))
			return client, nil
		}

		log.Warn("redis ping failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", cfg.PingMaxRetries),
			slog.String("error", pingErr.Error()),
		)
		lastErr = pingErr
		if attempt < cfg.PingMaxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d retries: %w", cfg.PingMaxRetries, lastErr)
}
