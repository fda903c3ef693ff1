package persistence

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageReportLogRepository implements overage.ReportLogRepository
type UsageReportLogRepository struct {
	db *gorm.DB
}

// NewUsageReportLogRepository creates a new UsageReportLogRepository
func NewUsageReportLogRepository(db *gorm.DB) *UsageReportLogRepository {
	return &UsageReportLogRepository{db: db}
}

// Save inserts a report log
func (r *UsageReportLogRepository) Save(ctx context.Context, log *overage.ReportLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	var model models.UsageReportLogModel
	model.FromDomain(log)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByTenant returns the tenant's logs created at or after since, newest first
func (r *UsageReportLogRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*overage.ReportLog, error) {
	var rows []models.UsageReportLogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	logs := make([]*overage.ReportLog, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToDomain()
	}
	return logs, nil
}

// Ensure UsageReportLogRepository implements overage.ReportLogRepository
var _ overage.ReportLogRepository = (*UsageReportLogRepository)(nil)
