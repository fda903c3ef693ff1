package models

import (
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// UsagePeriodModel is one tenant billing period as written by the usage aggregator
type UsagePeriodModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_usage_period,priority:1"`
	PeriodStart         time.Time `gorm:"not null;uniqueIndex:idx_tenant_usage_period,priority:2"`
	PeriodEnd           time.Time `gorm:"not null"`
	VideoStorageSeconds int64     `gorm:"not null;default:0"`
	ActiveStudents      int64     `gorm:"not null;default:0"`
	EmailsSent          int64     `gorm:"not null;default:0"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsagePeriodModel) TableName() string {
	return "tenant_usage_periods"
}

// ToDomain converts the persistence model to overage.Usage
func (m *UsagePeriodModel) ToDomain() *overage.Usage {
	return &overage.Usage{
		TenantID:            m.TenantID,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		VideoStorageSeconds: m.VideoStorageSeconds,
		ActiveStudents:      m.ActiveStudents,
		EmailsSent:          m.EmailsSent,
	}
}

// UsageReportLogModel is the GORM model for usage report logs
type UsageReportLogModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_report_logs_tenant_created,priority:1"`
	Metric             string    `gorm:"type:varchar(50);not null"`
	SubscriptionItemID string    `gorm:"type:varchar(255);not null"`
	Quantity           int64     `gorm:"not null"`
	Action             string    `gorm:"type:varchar(10);not null"`
	PeriodStart        time.Time `gorm:"not null"`
	StripeRecordID     string    `gorm:"type:varchar(255)"`
	Status             string    `gorm:"type:varchar(20);not null;index"`
	ErrorMessage       string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null;index:idx_usage_report_logs_tenant_created,priority:2"`
}

// TableName returns the table name for GORM
func (UsageReportLogModel) TableName() string {
	return "usage_report_logs"
}

// ToDomain converts the persistence model to a domain ReportLog
func (m *UsageReportLogModel) ToDomain() *overage.ReportLog {
	return &overage.ReportLog{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		Metric:             tier.Metric(m.Metric),
		SubscriptionItemID: m.SubscriptionItemID,
		Quantity:           m.Quantity,
		Action:             m.Action,
		PeriodStart:        m.PeriodStart,
		StripeRecordID:     m.StripeRecordID,
		Status:             overage.ReportStatus(m.Status),
		ErrorMessage:       m.ErrorMessage,
		CreatedAt:          m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain ReportLog
func (m *UsageReportLogModel) FromDomain(l *overage.ReportLog) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.Metric = l.Metric.String()
	m.SubscriptionItemID = l.SubscriptionItemID
	m.Quantity = l.Quantity
	m.Action = l.Action
	m.PeriodStart = l.PeriodStart
	m.StripeRecordID = l.StripeRecordID
	m.Status = l.Status.String()
	m.ErrorMessage = l.ErrorMessage
	m.CreatedAt = l.CreatedAt
}
