package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageSnapshotRepository_CurrentPeriod(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewUsageSnapshotRepository(db.DB, func() time.Time { return testNow })
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := repo.GetCurrentPeriodUsage(ctx, tenantID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	may := overage.Usage{
		TenantID:    tenantID,
		PeriodStart: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EmailsSent:  99999,
	}
	june := overage.Usage{
		TenantID:            tenantID,
		PeriodStart:         time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:           time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		VideoStorageSeconds: 3600,
		ActiveStudents:      120,
		EmailsSent:          1500,
	}
	require.NoError(t, repo.Upsert(ctx, &may))
	require.NoError(t, repo.Upsert(ctx, &june))

	usage, err := repo.GetCurrentPeriodUsage(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, usage.PeriodStart.Equal(june.PeriodStart))
	assert.Equal(t, int64(120), usage.ActiveStudents)

	// the aggregator rewrites the running period in place
	june.EmailsSent = 2500
	require.NoError(t, repo.Upsert(ctx, &june))

	usage, err = repo.GetCurrentPeriodUsage(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), usage.EmailsSent)
	assert.Equal(t, int64(2500), usage.Of(tier.MetricEmailsPerMonth))
}

func TestUsageReportLogRepository_FindByTenant(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewUsageReportLogRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()
	periodStart := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	logs := []*overage.ReportLog{
		{TenantID: tenantID, Metric: tier.MetricStudents, SubscriptionItemID: "si_1", Quantity: 2, Action: "set", PeriodStart: periodStart, Status: overage.ReportStatusSuccess, StripeRecordID: "mbur_1", CreatedAt: periodStart.Add(-time.Hour)},
		{TenantID: tenantID, Metric: tier.MetricStudents, SubscriptionItemID: "si_1", Quantity: 3, Action: "set", PeriodStart: periodStart, Status: overage.ReportStatusFailed, ErrorMessage: "card_declined", CreatedAt: testNow.Add(-time.Hour)},
		{TenantID: tenantID, Metric: tier.MetricEmailsPerMonth, SubscriptionItemID: "si_2", Quantity: 1, Action: "set", PeriodStart: periodStart, Status: overage.ReportStatusSuccess, StripeRecordID: "mbur_2", CreatedAt: testNow},
		{TenantID: uuid.New(), Metric: tier.MetricStudents, SubscriptionItemID: "si_9", Quantity: 1, Action: "set", PeriodStart: periodStart, Status: overage.ReportStatusSuccess, CreatedAt: testNow},
	}
	for _, l := range logs {
		require.NoError(t, repo.Save(ctx, l))
		assert.NotEqual(t, uuid.Nil, l.ID)
	}

	found, err := repo.FindByTenant(ctx, tenantID, periodStart)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, tier.MetricEmailsPerMonth, found[0].Metric)
	assert.Equal(t, overage.ReportStatusFailed, found[1].Status)
	assert.Equal(t, "card_declined", found[1].ErrorMessage)

	stats := overage.Summarise(found)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
}

func TestRowLocksUseSelectForUpdate(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	ctx := context.Background()
	tenantID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "billing_accounts"`) + `.*ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "billing_accounts" WHERE tenant_id = \$1 ORDER BY .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "tier", "overage_enabled", "created_at", "updated_at"}).
			AddRow(tenantID.String(), "launch", false, testNow, testNow))

	acct, err := NewGormAccountRepository(db.DB).LockForUpdate(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, tier.TierLaunch, acct.Tier)

	mock.ExpectQuery(`SELECT \* FROM "minute_packs" WHERE .*tenant_id = \$1.*expires_at > \$2.* ORDER BY purchased_at ASC, id ASC FOR UPDATE`).
		WithArgs(tenantID.String(), testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "pack_type", "minutes_total", "minutes_used", "purchased_at", "created_at", "updated_at"}))

	packs, err := NewGormPackRepository(db.DB).FindConsumableForUpdate(ctx, tenantID, testNow)
	require.NoError(t, err)
	assert.Empty(t, packs)

	require.NoError(t, mock.ExpectationsWereMet())
}
