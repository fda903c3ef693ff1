package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantLocker serialises a named job per tenant across processes.
type TenantLocker interface {
	// TryLock acquires the lock for (name, tenant) for at most ttl.
	// acquired is false when another holder owns it; release is nil in that case.
	TryLock(ctx context.Context, name string, tenantID uuid.UUID, ttl time.Duration) (release func(), acquired bool, err error)
}
