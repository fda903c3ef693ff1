package pack

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists minute packs
type Repository interface {
	// Create inserts a new pack. A duplicate external payment reference fails
	// with shared.ErrAlreadyExists.
	Create(ctx context.Context, p *Pack) error

	// Save persists MinutesUsed of an existing pack
	Save(ctx context.Context, p *Pack) error

	// FindByTenant returns every pack of the tenant, oldest purchase first
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Pack, error)

	// FindConsumable returns packs with unused, unexpired minutes, oldest purchase first
	FindConsumable(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*Pack, error)

	// FindConsumableForUpdate is FindConsumable with the rows locked until the
	// surrounding transaction ends
	FindConsumableForUpdate(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*Pack, error)

	// FindByPaymentRef returns the pack created for the payment, or shared.ErrNotFound
	FindByPaymentRef(ctx context.Context, ref string) (*Pack, error)
}
