package overage

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// Usage is a tenant's consumption for the current billing period, as
// reported by the usage aggregator
type Usage struct {
	TenantID            uuid.UUID `json:"tenant_id"`
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	VideoStorageSeconds int64     `json:"video_storage_seconds"`
	ActiveStudents      int64     `json:"active_students"`
	EmailsSent          int64     `json:"emails_sent"`
}

// Of returns the usage recorded for a billable metric
func (u Usage) Of(m tier.Metric) int64 {
	switch m {
	case tier.MetricVideoStorageSeconds:
		return u.VideoStorageSeconds
	case tier.MetricStudents:
		return u.ActiveStudents
	case tier.MetricEmailsPerMonth:
		return u.EmailsSent
	default:
		return 0
	}
}

// UsageAggregator is the read-only source of current-period consumption.
// It returns shared.ErrNotFound when nothing was recorded for the tenant.
type UsageAggregator interface {
	GetCurrentPeriodUsage(ctx context.Context, tenantID uuid.UUID) (*Usage, error)
}
