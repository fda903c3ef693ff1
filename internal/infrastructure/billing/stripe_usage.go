package billing

import (
	"context"
	"fmt"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// ReportUsage records an absolute or incremental quantity on a metered
// subscription item. Action defaults to set.
func (a *StripeAdapter) ReportUsage(ctx context.Context, input billingapp.UsageRecordInput) (*billingapp.UsageRecordOutput, error) {
	if input.SubscriptionItemID == "" {
		return nil, fmt.Errorf("stripe: subscription item ID is required")
	}
	if input.Quantity < 0 {
		return nil, fmt.Errorf("stripe: quantity cannot be negative")
	}

	action := input.Action
	if action == "" {
		action = billingapp.UsageActionSet
	}
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(input.SubscriptionItemID),
		Quantity:         stripe.Int64(input.Quantity),
		Action:           stripe.String(action),
	}
	params.Context = ctx
	if !input.Timestamp.IsZero() {
		params.Timestamp = stripe.Int64(input.Timestamp.Unix())
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	record, err := a.api.UsageRecords.New(params)
	if err != nil {
		a.logger.Error("Failed to report usage to Stripe",
			zap.String("subscription_item_id", input.SubscriptionItemID),
			zap.Int64("quantity", input.Quantity),
			zap.Bool("rate_limited", IsRateLimited(err)),
			zap.Error(err))
		return nil, mapStripeError("report usage", err)
	}

	a.logger.Debug("Reported usage to Stripe",
		zap.String("usage_record_id", record.ID),
		zap.String("subscription_item_id", input.SubscriptionItemID),
		zap.Int64("quantity", record.Quantity),
		zap.String("action", action))

	return &billingapp.UsageRecordOutput{ID: record.ID, Quantity: record.Quantity}, nil
}
