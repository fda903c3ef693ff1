package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultLockPrefix namespaces tenant job locks
const DefaultLockPrefix = "metering:lock:"

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose TTL lapsed cannot free a lock someone else has since taken
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTenantLocker implements TenantLocker with SET NX PX and a token
type RedisTenantLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisTenantLocker creates a locker over a shared client
func NewRedisTenantLocker(client redis.UniversalClient, keyPrefix string, logger *zap.Logger) *RedisTenantLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultLockPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTenantLocker{client: client, keyPrefix: keyPrefix, logger: logger}
}

func lockKey(prefix, name string, tenantID uuid.UUID) string {
	return prefix + name + ":" + tenantID.String()
}

// TryLock implements shared.TenantLocker
func (l *RedisTenantLocker) TryLock(ctx context.Context, name string, tenantID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	key := lockKey(l.keyPrefix, name, tenantID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release tenant lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
	return release, true, nil
}

var _ shared.TenantLocker = (*RedisTenantLocker)(nil)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// InMemoryTenantLocker implements TenantLocker within one process
type InMemoryTenantLocker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	clock shared.Clock
}

// NewInMemoryTenantLocker creates an in-process locker
func NewInMemoryTenantLocker(clock shared.Clock) *InMemoryTenantLocker {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &InMemoryTenantLocker{held: make(map[string]heldLock), clock: clock}
}

// TryLock implements shared.TenantLocker
func (l *InMemoryTenantLocker) TryLock(ctx context.Context, name string, tenantID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	key := lockKey("", name, tenantID)
	token := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return nil, false, nil
	}
	l.held[key] = heldLock{token: token, expiresAt: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.held[key]; ok && h.token == token {
			delete(l.held, key)
		}
	}
	return release, true, nil
}

var _ shared.TenantLocker = (*InMemoryTenantLocker)(nil)
