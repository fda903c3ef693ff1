package persistence

import (
	"context"
	"errors"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageSnapshotRepository reads the per-period usage the aggregator writes
// to tenant_usage_periods. It implements overage.UsageAggregator.
type UsageSnapshotRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewUsageSnapshotRepository creates a new UsageSnapshotRepository
func NewUsageSnapshotRepository(db *gorm.DB, clock shared.Clock) *UsageSnapshotRepository {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &UsageSnapshotRepository{db: db, clock: clock}
}

// GetCurrentPeriodUsage returns the period containing now, or shared.ErrNotFound
func (r *UsageSnapshotRepository) GetCurrentPeriodUsage(ctx context.Context, tenantID uuid.UUID) (*overage.Usage, error) {
	now := r.clock()
	var model models.UsagePeriodModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND period_start <= ? AND period_end > ?", tenantID, now, now).
		Order("period_start DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert writes a period, replacing the counters of an existing one
func (r *UsageSnapshotRepository) Upsert(ctx context.Context, usage *overage.Usage) error {
	model := models.UsagePeriodModel{
		ID:                  uuid.New(),
		TenantID:            usage.TenantID,
		PeriodStart:         usage.PeriodStart,
		PeriodEnd:           usage.PeriodEnd,
		VideoStorageSeconds: usage.VideoStorageSeconds,
		ActiveStudents:      usage.ActiveStudents,
		EmailsSent:          usage.EmailsSent,
		UpdatedAt:           r.clock(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end", "video_storage_seconds", "active_students", "emails_sent", "updated_at",
		}),
	}).Create(&model).Error
}

// Ensure UsageSnapshotRepository implements overage.UsageAggregator
var _ overage.UsageAggregator = (*UsageSnapshotRepository)(nil)
