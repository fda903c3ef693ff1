package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// MeteringMetrics records credit, pack and overage reporting activity.
// A nil *MeteringMetrics is valid and records nothing.
type MeteringMetrics struct {
	logger *zap.Logger

	creditDebits    *Counter
	creditsConsumed *Counter
	creditsGranted  *Counter
	packMinutes     *Counter
	packShortfall   *Counter
	usageReports    *Counter
	jobDuration     *Histogram
	overageCents    *Gauge
}

// MeteringMetricsConfig holds configuration for MeteringMetrics.
type MeteringMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewMeteringMetrics creates the metering instruments on cfg.Meter.
func NewMeteringMetrics(cfg MeteringMetricsConfig) (*MeteringMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &MeteringMetrics{logger: logger}
	var err error

	if m.creditDebits, err = NewCounter(cfg.Meter,
		"metering_credit_debit_total", "Credit debit attempts", "{requests}"); err != nil {
		return nil, err
	}
	if m.creditsConsumed, err = NewCounter(cfg.Meter,
		"metering_credits_consumed_total", "Credits consumed by successful debits", "{credits}"); err != nil {
		return nil, err
	}
	if m.creditsGranted, err = NewCounter(cfg.Meter,
		"metering_credits_granted_total", "Credits granted by allocation, purchase or add-on", "{credits}"); err != nil {
		return nil, err
	}
	if m.packMinutes, err = NewCounter(cfg.Meter,
		"metering_pack_minutes_debited_total", "Minutes drawn from prepaid packs", "{minutes}"); err != nil {
		return nil, err
	}
	if m.packShortfall, err = NewCounter(cfg.Meter,
		"metering_pack_minutes_shortfall_total", "Requested minutes that no pack could cover", "{minutes}"); err != nil {
		return nil, err
	}
	if m.usageReports, err = NewCounter(cfg.Meter,
		"metering_usage_reports_total", "Overage usage records pushed to the payment processor", "{reports}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(cfg.Meter,
		"metering_job_duration_seconds", "Duration of scheduled metering jobs", "s", JobDurationBuckets...); err != nil {
		return nil, err
	}
	if m.overageCents, err = NewGauge(cfg.Meter,
		"metering_estimated_overage_cents", "Estimated overage of the current period", "{cents}"); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCreditDebit records one debit attempt. amount is counted only when allowed.
func (m *MeteringMetrics) RecordCreditDebit(ctx context.Context, creditType string, amount int64, allowed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !allowed {
		outcome = OutcomeRejected
	}
	m.creditDebits.Inc(ctx, AttrCreditType.String(creditType), AttrOutcome.String(outcome))
	if allowed {
		m.creditsConsumed.Add(ctx, amount, AttrCreditType.String(creditType))
	}
}

// RecordCreditGrant records credits added to a ledger
func (m *MeteringMetrics) RecordCreditGrant(ctx context.Context, creditType string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.creditsGranted.Add(ctx, amount, AttrCreditType.String(creditType))
}

// RecordPackDebit records minutes drawn from packs and any uncovered remainder
func (m *MeteringMetrics) RecordPackDebit(ctx context.Context, debited, shortfall int64) {
	if m == nil {
		return
	}
	if debited > 0 {
		m.packMinutes.Add(ctx, debited)
	}
	if shortfall > 0 {
		m.packShortfall.Add(ctx, shortfall)
	}
}

// RecordUsageReport records one usage record push outcome
func (m *MeteringMetrics) RecordUsageReport(ctx context.Context, metricName, outcome string) {
	if m == nil {
		return
	}
	m.usageReports.Inc(ctx, AttrMetric.String(metricName), AttrOutcome.String(outcome))
}

// RecordEstimatedOverage sets the current estimated overage of a tenant
func (m *MeteringMetrics) RecordEstimatedOverage(ctx context.Context, tenantID uuid.UUID, cents int64) {
	if m == nil {
		return
	}
	m.overageCents.Record(ctx, cents, AttrTenantID.String(tenantID.String()))
}

// ObserveJob records how long a scheduled job ran
func (m *MeteringMetrics) ObserveJob(ctx context.Context, job string, started time.Time) {
	if m == nil {
		return
	}
	m.jobDuration.RecordDuration(ctx, time.Since(started), AttrJob.String(job))
}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewMeteringMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
