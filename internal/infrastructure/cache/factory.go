package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coordination bundles the cross-instance primitives of the service
type Coordination struct {
	// Client is nil when the in-memory implementations are in use
	Client      *redis.Client
	Idempotency shared.IdempotencyStore
	Locker      shared.TenantLocker
}

// Close releases the idempotency store and the Redis client
func (c *Coordination) Close() error {
	if err := c.Idempotency.Close(); err != nil {
		return err
	}
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Ping checks Redis; the in-memory variant is always healthy
func (c *Coordination) Ping(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Ping(ctx).Err()
}

// Factory builds the Coordination for a Redis configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory implementations instead of failing
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// Build returns Redis backed primitives when Redis is enabled and reachable
func (f *Factory) Build(ctx context.Context) (*Coordination, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory idempotency store and locks")
		return f.inMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for coordination but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory coordination. "+
			"Webhook deduplication and report locks are then per instance.",
			zap.Error(err))
		return f.inMemory(), nil
	}

	f.logger.Info("Using Redis idempotency store and locks", zap.String("addr", f.redisConfig.Addr()))
	return &Coordination{
		Client:      client,
		Idempotency: NewRedisIdempotencyStore(client, DefaultIdempotencyPrefix),
		Locker:      NewRedisTenantLocker(client, DefaultLockPrefix, f.logger),
	}, nil
}

func (f *Factory) inMemory() *Coordination {
	return &Coordination{
		Idempotency: NewInMemoryIdempotencyStore(nil, 0),
		Locker:      NewInMemoryTenantLocker(nil),
	}
}
