package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAccountRepository implements account.Repository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByTenant returns the tenant's account or shared.ErrNotFound
func (r *GormAccountRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*account.BillingAccount, error) {
	var model models.BillingAccountModel
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeCustomer returns the account linked to a Stripe customer or shared.ErrNotFound
func (r *GormAccountRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	if customerID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.BillingAccountModel
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates the account
func (r *GormAccountRepository) Save(ctx context.Context, a *account.BillingAccount) error {
	var model models.BillingAccountModel
	model.FromDomain(a)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier", "overage_enabled", "stripe_customer_id", "stripe_subscription_id", "updated_at",
		}),
	}).Create(&model).Error
}

// LockForUpdate locks the tenant's account row for the rest of the
// transaction, inserting a launch-tier row first when the tenant has none.
func (r *GormAccountRepository) LockForUpdate(ctx context.Context, tenantID uuid.UUID) (*account.BillingAccount, error) {
	now := time.Now().UTC()
	seed := models.BillingAccountModel{
		TenantID:  tenantID,
		Tier:      tier.TierLaunch.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("ensure billing account: %w", err)
	}

	var model models.BillingAccountModel
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		First(&model).Error
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListOverageEnabled returns accounts with overage billing on and a subscription
func (r *GormAccountRepository) ListOverageEnabled(ctx context.Context) ([]*account.BillingAccount, error) {
	var rows []models.BillingAccountModel
	err := r.db.WithContext(ctx).
		Where("overage_enabled = ? AND stripe_subscription_id <> ''", true).
		Order("tenant_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

// ListAll returns every account
func (r *GormAccountRepository) ListAll(ctx context.Context) ([]*account.BillingAccount, error) {
	var rows []models.BillingAccountModel
	if err := r.db.WithContext(ctx).Order("tenant_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

func toAccounts(rows []models.BillingAccountModel) []*account.BillingAccount {
	accounts := make([]*account.BillingAccount, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts
}

// Ensure GormAccountRepository implements account.Repository
var _ account.Repository = (*GormAccountRepository)(nil)
