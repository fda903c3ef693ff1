package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newTestMetrics(t *testing.T) (*telemetry.MeteringMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewMeteringMetrics(telemetry.MeteringMetricsConfig{
		Meter:  provider.Meter("test"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeteringMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewMeteringMetrics(telemetry.MeteringMetricsConfig{})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestMeteringMetrics_CreditDebit(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCreditDebit(ctx, "ai_quiz", 2, true)
	m.RecordCreditDebit(ctx, "ai_quiz", 5, false)
	m.RecordCreditGrant(ctx, "ai_quiz", 25)
	m.RecordCreditGrant(ctx, "ai_quiz", 0)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got["metering_credit_debit_total"],
		telemetry.AttrCreditType.String("ai_quiz"), telemetry.AttrOutcome.String(telemetry.OutcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, got["metering_credit_debit_total"],
		telemetry.AttrCreditType.String("ai_quiz"), telemetry.AttrOutcome.String(telemetry.OutcomeRejected)))
	assert.Equal(t, int64(2), sumFor(t, got["metering_credits_consumed_total"]))
	assert.Equal(t, int64(25), sumFor(t, got["metering_credits_granted_total"]))
}

func TestMeteringMetrics_PackAndReports(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPackDebit(ctx, 10, 5)
	m.RecordPackDebit(ctx, 3, 0)
	m.RecordUsageReport(ctx, "students", telemetry.OutcomeFailed)
	m.RecordEstimatedOverage(ctx, uuid.New(), 2510)
	m.ObserveJob(ctx, "usage_report", time.Now().Add(-time.Second))

	got := collect(t, reader)
	assert.Equal(t, int64(13), sumFor(t, got["metering_pack_minutes_debited_total"]))
	assert.Equal(t, int64(5), sumFor(t, got["metering_pack_minutes_shortfall_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["metering_usage_reports_total"],
		telemetry.AttrMetric.String("students"), telemetry.AttrOutcome.String(telemetry.OutcomeFailed)))
	assert.Contains(t, got, "metering_estimated_overage_cents")
	assert.Contains(t, got, "metering_job_duration_seconds")
}

func TestMeteringMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.MeteringMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordCreditDebit(ctx, "ai_image", 1, true)
		m.RecordCreditGrant(ctx, "ai_image", 1)
		m.RecordPackDebit(ctx, 1, 1)
		m.RecordUsageReport(ctx, "students", telemetry.OutcomeSuccess)
		m.RecordEstimatedOverage(ctx, uuid.New(), 1)
		m.ObserveJob(ctx, "x", time.Now())
	})
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "metering-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))
}
