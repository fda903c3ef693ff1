// Package billing orchestrates overage reporting to the payment processor,
// upgrade advice, entitlement checks and payment webhook fulfilment.
package billing

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
)

// UsageActionSet replaces the period's reported quantity instead of adding to it
const UsageActionSet = "set"

// SubscriptionItem is one price line of a processor subscription
type SubscriptionItem struct {
	ID      string
	PriceID string
}

// UsageRecordInput is an absolute usage quantity for a metered subscription item
type UsageRecordInput struct {
	SubscriptionItemID string
	Quantity           int64
	Timestamp          time.Time
	Action             string
	IdempotencyKey     string
}

// UsageRecordOutput is the processor's acknowledgement of a usage record
type UsageRecordOutput struct {
	ID       string
	Quantity int64
}

// BillingGateway is the subscription side of the payment processor
type BillingGateway interface {
	GetSubscriptionItems(ctx context.Context, subscriptionID string) ([]SubscriptionItem, error)
	// AddSubscriptionItem retries with the same idempotencyKey replay the
	// first response, so callers pass a key unique to the enable attempt.
	AddSubscriptionItem(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*SubscriptionItem, error)
	DeleteSubscriptionItem(ctx context.Context, itemID string) error
	ReportUsage(ctx context.Context, input UsageRecordInput) (*UsageRecordOutput, error)
}

// MeteredPrices maps a billable metric to its metered processor price
type MeteredPrices map[tier.Metric]string

// MetricForPrice returns the metric billed by priceID
func (p MeteredPrices) MetricForPrice(priceID string) (tier.Metric, bool) {
	for m, id := range p {
		if id != "" && id == priceID {
			return m, true
		}
	}
	return "", false
}
