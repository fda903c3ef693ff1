package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// CreditBalances reads credit balances
type CreditBalances interface {
	GetBalance(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (int64, error)
}

// EntitlementService answers whether a tenant may consume one more unit of a metric
type EntitlementService struct {
	accounts account.Repository
	usage    overage.UsageAggregator
	credits  CreditBalances
}

// NewEntitlementService creates an EntitlementService
func NewEntitlementService(accounts account.Repository, usage overage.UsageAggregator, credits CreditBalances) *EntitlementService {
	return &EntitlementService{accounts: accounts, usage: usage, credits: credits}
}

// CheckCanPerformAction applies the tier policy to the tenant. When
// currentUsage is nil it is derived: billable metrics from the usage
// aggregator, AI metrics as allocation minus remaining credits. Credits have
// no overage, so AI metrics are never allowed past the limit.
func (s *EntitlementService) CheckCanPerformAction(ctx context.Context, tenantID uuid.UUID, m tier.Metric, currentUsage *int64) (*tier.ActionCheck, error) {
	if !m.IsValid() {
		return nil, tier.ErrInvalidMetric
	}

	t := tier.TierLaunch
	overageEnabled := false
	acct, err := s.accounts.FindByTenant(ctx, tenantID)
	switch {
	case err == nil:
		t = acct.Tier
		overageEnabled = acct.OverageEnabled
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("load billing account: %w", err)
	}

	var used int64
	if currentUsage != nil {
		used = *currentUsage
	} else {
		used, err = s.derivedUsage(ctx, tenantID, t, m)
		if err != nil {
			return nil, err
		}
	}

	check, err := tier.CheckCanPerformAction(t, m, used, overageEnabled && tier.OverageRate(m) > 0)
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (s *EntitlementService) derivedUsage(ctx context.Context, tenantID uuid.UUID, t tier.Tier, m tier.Metric) (int64, error) {
	if ct, ok := m.CreditType(); ok {
		limit, err := tier.Limit(t, m)
		if err != nil {
			return 0, err
		}
		balance, err := s.credits.GetBalance(ctx, tenantID, ct)
		if err != nil {
			return 0, fmt.Errorf("read credit balance: %w", err)
		}
		return limit - balance, nil
	}

	usage, err := s.usage.GetCurrentPeriodUsage(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read current period usage: %w", err)
	}
	return usage.Of(m), nil
}
