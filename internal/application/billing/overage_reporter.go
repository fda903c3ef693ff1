package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reportLockName is the TenantLocker name of the usage push job
const reportLockName = "overage_report"

// MetricReport is the outcome of pushing one metric
type MetricReport struct {
	Metric             tier.Metric          `json:"metric"`
	Quantity           int64                `json:"quantity"`
	SubscriptionItemID string               `json:"subscription_item_id,omitempty"`
	RecordID           string               `json:"record_id,omitempty"`
	Status             overage.ReportStatus `json:"status"`
	Error              string               `json:"error,omitempty"`
}

// ReportResult is the outcome of one tenant's report run
type ReportResult struct {
	TenantID    uuid.UUID      `json:"tenant_id"`
	Skipped     bool           `json:"skipped"`
	Reason      string         `json:"reason,omitempty"`
	PeriodStart time.Time      `json:"period_start,omitempty"`
	Metrics     []MetricReport `json:"metrics"`
}

// Failed counts metrics whose push failed
func (r *ReportResult) Failed() int {
	n := 0
	for _, m := range r.Metrics {
		if m.Status == overage.ReportStatusFailed {
			n++
		}
	}
	return n
}

// BatchReportResult summarises a ReportAll run
type BatchReportResult struct {
	Tenants  int `json:"tenants"`
	Reported int `json:"reported"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// SubscriptionChange lists the metered items touched by enabling or disabling overage
type SubscriptionChange struct {
	OverageEnabled bool     `json:"overage_enabled"`
	AddedItems     []string `json:"added_items"`
	RemovedItems   []string `json:"removed_items"`
}

// OverageSummary is the dashboard view of the current period's overage
type OverageSummary struct {
	TenantID       uuid.UUID               `json:"tenant_id"`
	Tier           tier.Tier               `json:"tier,omitempty"`
	OverageEnabled bool                    `json:"overage_enabled"`
	PeriodStart    *time.Time              `json:"period_start,omitempty"`
	PeriodEnd      *time.Time              `json:"period_end,omitempty"`
	Charges        []overage.Charge        `json:"charges"`
	TotalCents     int64                   `json:"total_cents"`
	TotalDollars   string                  `json:"total_dollars"`
	Recommendation *overage.Recommendation `json:"recommendation,omitempty"`
	Reports        overage.ReportStats     `json:"reports"`
}

// OverageReporter pushes current-period overage to the payment processor and
// keeps the metered subscription items in line with the account's overage setting.
type OverageReporter struct {
	accounts account.Repository
	usage    overage.UsageAggregator
	gateway  BillingGateway
	prices   MeteredPrices
	logs     overage.ReportLogRepository
	locker   shared.TenantLocker
	metrics  *telemetry.MeteringMetrics
	clock    shared.Clock
	logger   *zap.Logger
	lockTTL  time.Duration
}

// OverageReporterConfig contains the collaborators of OverageReporter
type OverageReporterConfig struct {
	Accounts account.Repository
	Usage    overage.UsageAggregator
	Gateway  BillingGateway
	Prices   MeteredPrices
	Logs     overage.ReportLogRepository
	Locker   shared.TenantLocker
	Metrics  *telemetry.MeteringMetrics
	Clock    shared.Clock
	Logger   *zap.Logger
	// LockTTL bounds one tenant's report run (default: 5 minutes)
	LockTTL time.Duration
}

// NewOverageReporter creates an OverageReporter
func NewOverageReporter(cfg OverageReporterConfig) *OverageReporter {
	r := &OverageReporter{
		accounts: cfg.Accounts,
		usage:    cfg.Usage,
		gateway:  cfg.Gateway,
		prices:   cfg.Prices,
		logs:     cfg.Logs,
		locker:   cfg.Locker,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		lockTTL:  cfg.LockTTL,
	}
	if r.clock == nil {
		r.clock = shared.SystemClock
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.lockTTL <= 0 {
		r.lockTTL = 5 * time.Minute
	}
	return r
}

// ReportUsageToStripe pushes the tenant's billable overage as absolute
// quantities. Individual push failures are logged and recorded; the next run
// sets the same quantity again.
func (r *OverageReporter) ReportUsageToStripe(ctx context.Context, tenantID uuid.UUID) (*ReportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "overage", "report_usage")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	result := &ReportResult{TenantID: tenantID, Metrics: []MetricReport{}}

	acct, err := r.accounts.FindByTenant(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return skipped(result, "no billing account"), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load billing account: %w", err)
	}
	if !acct.OverageEnabled {
		return skipped(result, "overage billing disabled"), nil
	}
	if !acct.HasSubscription() {
		return skipped(result, "no subscription"), nil
	}
	if r.gateway == nil {
		return skipped(result, "payment processor not configured"), nil
	}

	if r.locker != nil {
		release, acquired, err := r.locker.TryLock(ctx, reportLockName, tenantID, r.lockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("acquire report lock: %w", err)
		}
		if !acquired {
			return skipped(result, "report already running"), nil
		}
		defer release()
	}

	usage, err := r.usage.GetCurrentPeriodUsage(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return skipped(result, "no usage recorded"), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("read current period usage: %w", err)
	}
	result.PeriodStart = usage.PeriodStart

	charges, err := overage.Compute(acct.Tier, *usage)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		result.Reason = "no overage"
		return result, nil
	}

	items, err := r.gateway.GetSubscriptionItems(ctx, acct.StripeSubscriptionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list subscription items: %w", err)
	}
	itemByPrice := make(map[string]SubscriptionItem, len(items))
	for _, it := range items {
		itemByPrice[it.PriceID] = it
	}

	for _, c := range charges {
		priceID := r.prices[c.Metric]
		item, ok := itemByPrice[priceID]
		if priceID == "" || !ok {
			r.logger.Debug("No metered line item for metric, skipping",
				zap.String("tenant_id", tenantID.String()),
				zap.String("metric", c.Metric.String()),
			)
			r.metrics.RecordUsageReport(ctx, c.Metric.String(), telemetry.OutcomeSkipped)
			result.Metrics = append(result.Metrics, MetricReport{
				Metric:   c.Metric,
				Quantity: c.OverageUnits,
				Status:   overage.ReportStatusSkipped,
			})
			continue
		}
		report := r.push(ctx, tenantID, item, c, usage.PeriodStart)
		telemetry.AddEvent(span, "usage_record_pushed",
			telemetry.SpanAttrMetric, c.Metric.String(),
			"quantity", c.OverageUnits,
			"status", string(report.Status),
		)
		result.Metrics = append(result.Metrics, report)
	}

	telemetry.SetAttributes(span, "metrics_reported", len(result.Metrics), "metrics_failed", result.Failed())
	if result.Failed() == 0 {
		telemetry.SetOK(span)
	}
	return result, nil
}

// push sends one usage record and writes its report log
func (r *OverageReporter) push(ctx context.Context, tenantID uuid.UUID, item SubscriptionItem, c overage.Charge, periodStart time.Time) MetricReport {
	now := r.clock()
	report := MetricReport{
		Metric:             c.Metric,
		Quantity:           c.OverageUnits,
		SubscriptionItemID: item.ID,
	}

	out, err := r.gateway.ReportUsage(ctx, UsageRecordInput{
		SubscriptionItemID: item.ID,
		Quantity:           c.OverageUnits,
		Timestamp:          now,
		Action:             UsageActionSet,
		IdempotencyKey:     IdempotencyKey(tenantID, item.ID, c.Metric, periodStart, c.OverageUnits),
	})
	if err != nil {
		report.Status = overage.ReportStatusFailed
		report.Error = err.Error()
		r.logger.Error("Failed to report overage usage",
			zap.String("tenant_id", tenantID.String()),
			zap.String("metric", c.Metric.String()),
			zap.String("subscription_item_id", item.ID),
			zap.Int64("quantity", c.OverageUnits),
			zap.Error(err),
		)
		r.metrics.RecordUsageReport(ctx, c.Metric.String(), telemetry.OutcomeFailed)
	} else {
		report.Status = overage.ReportStatusSuccess
		report.RecordID = out.ID
		r.metrics.RecordUsageReport(ctx, c.Metric.String(), telemetry.OutcomeSuccess)
	}

	if r.logs != nil {
		entry := &overage.ReportLog{
			ID:                 uuid.New(),
			TenantID:           tenantID,
			Metric:             c.Metric,
			SubscriptionItemID: item.ID,
			Quantity:           c.OverageUnits,
			Action:             UsageActionSet,
			PeriodStart:        periodStart,
			StripeRecordID:     report.RecordID,
			Status:             report.Status,
			ErrorMessage:       report.Error,
			CreatedAt:          now,
		}
		if err := r.logs.Save(ctx, entry); err != nil {
			r.logger.Error("Failed to save usage report log",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	return report
}

// AddItemIdempotencyKey scopes an item creation to one enable attempt
func AddItemIdempotencyKey(subscriptionID, priceID, attempt string) string {
	return fmt.Sprintf("add-item:%s:%s:%s", subscriptionID, priceID, attempt)
}

// IdempotencyKey identifies a usage push. Retrying the same quantity in the
// same period reuses the key; a changed quantity gets a new one.
func IdempotencyKey(tenantID uuid.UUID, itemID string, m tier.Metric, periodStart time.Time, quantity int64) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", tenantID, itemID, m, periodStart.Unix(), quantity)
}

// ReportAll runs ReportUsageToStripe for every account with overage billing enabled
func (r *OverageReporter) ReportAll(ctx context.Context) (*BatchReportResult, error) {
	started := r.clock()
	defer r.metrics.ObserveJob(ctx, "overage_report", started)

	accounts, err := r.accounts.ListOverageEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overage-enabled accounts: %w", err)
	}

	batch := &BatchReportResult{}
	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		batch.Tenants++
		res, err := r.ReportUsageToStripe(ctx, acct.TenantID)
		if err != nil {
			batch.Failed++
			r.logger.Error("Overage report run failed",
				zap.String("tenant_id", acct.TenantID.String()),
				zap.Error(err),
			)
			continue
		}
		if res.Skipped {
			batch.Skipped++
			continue
		}
		for _, m := range res.Metrics {
			switch m.Status {
			case overage.ReportStatusSuccess:
				batch.Reported++
			case overage.ReportStatusFailed:
				batch.Failed++
			}
		}
	}

	r.logger.Info("Overage report batch completed",
		zap.Int("tenants", batch.Tenants),
		zap.Int("reported", batch.Reported),
		zap.Int("failed", batch.Failed),
		zap.Int("skipped", batch.Skipped),
	)
	return batch, nil
}

// EnableOverageOnSubscription adds the metered price items that the
// subscription lacks and turns overage billing on. Repeating it adds nothing.
func (r *OverageReporter) EnableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionChange, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "overage", "enable")
	defer span.End()

	acct, items, err := r.subscriptionState(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.PriceID] = true
	}

	attempt := uuid.NewString()
	change := &SubscriptionChange{OverageEnabled: true, AddedItems: []string{}, RemovedItems: []string{}}
	for _, m := range tier.BillableMetrics() {
		priceID := r.prices[m]
		if priceID == "" || present[priceID] {
			continue
		}
		key := AddItemIdempotencyKey(acct.StripeSubscriptionID, priceID, attempt)
		item, err := r.gateway.AddSubscriptionItem(ctx, acct.StripeSubscriptionID, priceID, key)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("add metered item for %s: %w", m, err)
		}
		present[priceID] = true
		change.AddedItems = append(change.AddedItems, item.ID)
	}

	if err := r.saveOverage(ctx, acct, true); err != nil {
		return nil, err
	}
	r.logger.Info("Overage billing enabled",
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("added_items", change.AddedItems),
	)
	return change, nil
}

// DisableOverageOnSubscription removes the metered price items and turns
// overage billing off. Items of other prices are left alone.
func (r *OverageReporter) DisableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionChange, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "overage", "disable")
	defer span.End()

	acct, items, err := r.subscriptionState(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	change := &SubscriptionChange{OverageEnabled: false, AddedItems: []string{}, RemovedItems: []string{}}
	for _, it := range items {
		if _, metered := r.prices.MetricForPrice(it.PriceID); !metered {
			continue
		}
		if err := r.gateway.DeleteSubscriptionItem(ctx, it.ID); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("delete metered item %s: %w", it.ID, err)
		}
		change.RemovedItems = append(change.RemovedItems, it.ID)
	}

	if err := r.saveOverage(ctx, acct, false); err != nil {
		return nil, err
	}
	r.logger.Info("Overage billing disabled",
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("removed_items", change.RemovedItems),
	)
	return change, nil
}

func (r *OverageReporter) subscriptionState(ctx context.Context, tenantID uuid.UUID) (*account.BillingAccount, []SubscriptionItem, error) {
	if r.gateway == nil {
		return nil, nil, shared.ErrInvalidState.WithMessage("payment processor is not configured")
	}
	acct, err := r.accounts.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load billing account: %w", err)
	}
	if !acct.HasSubscription() {
		return nil, nil, shared.ErrInvalidState.WithMessage("tenant has no subscription")
	}
	items, err := r.gateway.GetSubscriptionItems(ctx, acct.StripeSubscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list subscription items: %w", err)
	}
	return acct, items, nil
}

func (r *OverageReporter) saveOverage(ctx context.Context, acct *account.BillingAccount, enabled bool) error {
	if !acct.SetOverage(enabled, r.clock()) {
		return nil
	}
	if err := r.accounts.Save(ctx, acct); err != nil {
		return fmt.Errorf("save billing account: %w", err)
	}
	return nil
}

// GetOverageSummary returns the current period's charges, their total and
// the upgrade advice. Missing account or usage yields an empty summary.
func (r *OverageReporter) GetOverageSummary(ctx context.Context, tenantID uuid.UUID) (*OverageSummary, error) {
	summary := &OverageSummary{
		TenantID:     tenantID,
		Charges:      []overage.Charge{},
		TotalDollars: "0.00",
	}

	acct, err := r.accounts.FindByTenant(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load billing account: %w", err)
	}
	summary.Tier = acct.Tier
	summary.OverageEnabled = acct.OverageEnabled

	usage, err := r.usage.GetCurrentPeriodUsage(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current period usage: %w", err)
	}
	summary.PeriodStart = &usage.PeriodStart
	summary.PeriodEnd = &usage.PeriodEnd

	charges, err := overage.Compute(acct.Tier, *usage)
	if err != nil {
		return nil, err
	}
	summary.Charges = charges
	summary.TotalCents = overage.TotalCents(charges)
	summary.TotalDollars = decimal.New(summary.TotalCents, -2).StringFixed(2)

	rec, err := overage.RecommendFromEstimate(acct.Tier, summary.TotalCents)
	if err != nil {
		return nil, err
	}
	summary.Recommendation = &rec

	if r.logs != nil {
		logs, err := r.logs.FindByTenant(ctx, tenantID, usage.PeriodStart)
		if err != nil {
			r.logger.Warn("Failed to load usage report logs",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else {
			summary.Reports = overage.Summarise(logs)
		}
	}

	r.metrics.RecordEstimatedOverage(ctx, tenantID, summary.TotalCents)
	return summary, nil
}

func skipped(result *ReportResult, reason string) *ReportResult {
	result.Skipped = true
	result.Reason = reason
	return result
}
