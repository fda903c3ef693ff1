// Package account holds the per-tenant billing account: its tier, overage
// setting and payment processor references.
package account

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// BillingAccount is the billing state of one tenant
type BillingAccount struct {
	TenantID             uuid.UUID
	Tier                 tier.Tier
	OverageEnabled       bool
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewBillingAccount creates an account on the given tier with overage disabled
func NewBillingAccount(tenantID uuid.UUID, t tier.Tier, now time.Time) (*BillingAccount, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("tenant ID is required")
	}
	if !t.IsValid() {
		return nil, tier.ErrInvalidTier
	}
	return &BillingAccount{
		TenantID:  tenantID,
		Tier:      t,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasSubscription reports whether the account is linked to a processor subscription
func (a *BillingAccount) HasSubscription() bool {
	return a.StripeSubscriptionID != ""
}

// SetOverage records whether overage billing is enabled. Returns false when unchanged.
func (a *BillingAccount) SetOverage(enabled bool, now time.Time) bool {
	if a.OverageEnabled == enabled {
		return false
	}
	a.OverageEnabled = enabled
	a.UpdatedAt = now
	return true
}

// ChangeTier moves the account to another tier
func (a *BillingAccount) ChangeTier(t tier.Tier, now time.Time) error {
	if !t.IsValid() {
		return tier.ErrInvalidTier
	}
	a.Tier = t
	a.UpdatedAt = now
	return nil
}

// Repository persists billing accounts
type Repository interface {
	// FindByTenant returns the account or shared.ErrNotFound
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*BillingAccount, error)

	// FindByStripeCustomer returns the account linked to a processor customer or shared.ErrNotFound
	FindByStripeCustomer(ctx context.Context, customerID string) (*BillingAccount, error)

	// Save creates or updates the account
	Save(ctx context.Context, a *BillingAccount) error

	// LockForUpdate locks the tenant's account row until the surrounding
	// transaction ends, creating a launch-tier row first when none exists.
	// Every balance mutation of the tenant takes this lock before reading.
	LockForUpdate(ctx context.Context, tenantID uuid.UUID) (*BillingAccount, error)

	// ListOverageEnabled returns accounts with overage billing on and a subscription
	ListOverageEnabled(ctx context.Context) ([]*BillingAccount, error)

	// ListAll returns every account
	ListAll(ctx context.Context) ([]*BillingAccount, error)
}
