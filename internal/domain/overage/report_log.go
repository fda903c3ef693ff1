package overage

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// ReportStatus is the outcome of one usage record push
type ReportStatus string

const (
	ReportStatusSuccess ReportStatus = "success"
	ReportStatusFailed  ReportStatus = "failed"
	ReportStatusSkipped ReportStatus = "skipped"
)

// String returns the string representation of ReportStatus
func (s ReportStatus) String() string {
	return string(s)
}

// ReportLog records one attempt to push an overage quantity to the payment processor
type ReportLog struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Metric             tier.Metric
	SubscriptionItemID string
	Quantity           int64
	Action             string
	PeriodStart        time.Time
	StripeRecordID     string
	Status             ReportStatus
	ErrorMessage       string
	CreatedAt          time.Time
}

// ReportStats summarises report logs of a tenant
type ReportStats struct {
	Total      int        `json:"total"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}

// ReportLogRepository persists report logs
type ReportLogRepository interface {
	Save(ctx context.Context, log *ReportLog) error
	FindByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*ReportLog, error)
}

// Summarise counts logs by status
func Summarise(logs []*ReportLog) ReportStats {
	var stats ReportStats
	for _, l := range logs {
		stats.Total++
		switch l.Status {
		case ReportStatusSuccess:
			stats.Successful++
		case ReportStatusFailed:
			stats.Failed++
		case ReportStatusSkipped:
			stats.Skipped++
		}
		if stats.LastRunAt == nil || l.CreatedAt.After(*stats.LastRunAt) {
			at := l.CreatedAt
			stats.LastRunAt = &at
		}
	}
	return stats
}
