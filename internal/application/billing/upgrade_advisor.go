package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpgradeAdvisor suggests a tier upgrade when overage outgrows the price step
type UpgradeAdvisor struct {
	accounts account.Repository
	usage    overage.UsageAggregator
	logger   *zap.Logger
}

// NewUpgradeAdvisor creates an UpgradeAdvisor
func NewUpgradeAdvisor(accounts account.Repository, usage overage.UsageAggregator, logger *zap.Logger) *UpgradeAdvisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpgradeAdvisor{accounts: accounts, usage: usage, logger: logger}
}

// CheckAutoUpgradeRecommendation evaluates the tenant's current period.
// Tenants without an account are treated as launch tier and tenants without
// recorded usage as having none.
func (a *UpgradeAdvisor) CheckAutoUpgradeRecommendation(ctx context.Context, tenantID uuid.UUID) (*overage.Recommendation, error) {
	current := tier.TierLaunch
	acct, err := a.accounts.FindByTenant(ctx, tenantID)
	switch {
	case err == nil:
		current = acct.Tier
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("load billing account: %w", err)
	}

	usage := overage.Usage{TenantID: tenantID}
	got, err := a.usage.GetCurrentPeriodUsage(ctx, tenantID)
	switch {
	case err == nil:
		usage = *got
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("read current period usage: %w", err)
	}

	rec, err := overage.Recommend(current, usage)
	if err != nil {
		return nil, err
	}
	if rec.ShouldRecommend {
		a.logger.Info("Upgrade recommended",
			zap.String("tenant_id", tenantID.String()),
			zap.String("current_tier", current.String()),
			zap.String("recommended_tier", rec.RecommendedTier.String()),
			zap.Int64("estimated_overage_cents", rec.EstimatedOverageCents))
	}
	return &rec, nil
}
