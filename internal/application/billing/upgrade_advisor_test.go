package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAutoUpgradeRecommendation(t *testing.T) {
	tests := []struct {
		name      string
		tier      tier.Tier
		students  int64
		recommend bool
		next      tier.Tier
	}{
		// launch -> grow: 5000 cents apart, threshold 2500 cents = 250 students over
		{name: "below threshold", tier: tier.TierLaunch, students: 750, recommend: false},
		{name: "above threshold", tier: tier.TierLaunch, students: 751, recommend: true, next: tier.TierGrow},
		{name: "top tier", tier: tier.TierScale, students: 50000, recommend: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := new(mockAccountRepository)
			usage := new(mockUsageAggregator)
			advisor := NewUpgradeAdvisor(accounts, usage, nil)
			ctx := context.Background()
			tenantID := uuid.New()

			accounts.On("FindByTenant", ctx, tenantID).Return(testAccount(tenantID, tt.tier, true, "sub_1"), nil)
			usage.On("GetCurrentPeriodUsage", ctx, tenantID).Return(periodUsage(tenantID, 0, tt.students, 0), nil)

			rec, err := advisor.CheckAutoUpgradeRecommendation(ctx, tenantID)

			require.NoError(t, err)
			assert.Equal(t, tt.recommend, rec.ShouldRecommend)
			assert.Equal(t, tt.next, rec.RecommendedTier)
			assert.Equal(t, tt.tier, rec.CurrentTier)
		})
	}
}

func TestCheckAutoUpgradeRecommendation_MissingData(t *testing.T) {
	accounts := new(mockAccountRepository)
	usage := new(mockUsageAggregator)
	advisor := NewUpgradeAdvisor(accounts, usage, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	accounts.On("FindByTenant", ctx, tenantID).Return(nil, shared.ErrNotFound)
	usage.On("GetCurrentPeriodUsage", ctx, tenantID).Return(nil, shared.ErrNotFound)

	rec, err := advisor.CheckAutoUpgradeRecommendation(ctx, tenantID)

	require.NoError(t, err)
	assert.False(t, rec.ShouldRecommend)
	assert.Equal(t, tier.TierLaunch, rec.CurrentTier)
	assert.Equal(t, int64(0), rec.EstimatedOverageCents)
}

func TestCheckAutoUpgradeRecommendation_UsageError(t *testing.T) {
	accounts := new(mockAccountRepository)
	usage := new(mockUsageAggregator)
	advisor := NewUpgradeAdvisor(accounts, usage, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	accounts.On("FindByTenant", ctx, tenantID).Return(testAccount(tenantID, tier.TierGrow, false, ""), nil)
	usage.On("GetCurrentPeriodUsage", ctx, tenantID).Return(nil, errors.New("replica lag"))

	_, err := advisor.CheckAutoUpgradeRecommendation(ctx, tenantID)

	assert.Error(t, err)
}
