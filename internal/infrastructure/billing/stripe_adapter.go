// Package billing adapts the Stripe API to the billing and pack ports of the
// application layer.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

var (
	_ billingapp.BillingGateway = (*StripeAdapter)(nil)
	_ packapp.CheckoutGateway   = (*StripeAdapter)(nil)
)

// StripeAdapter talks to Stripe through a per-instance client, so several
// adapters (and tests) never share the package level stripe.Key.
type StripeAdapter struct {
	api      *client.API
	currency string
	logger   *zap.Logger
}

// NewStripeAdapter creates a Stripe adapter. backends may be nil to use the
// live Stripe API.
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger, backends *stripe.Backends) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if backends == nil {
		backendCfg := &stripe.BackendConfig{}
		if config.MaxNetworkRetries > 0 {
			backendCfg.MaxNetworkRetries = stripe.Int64(config.MaxNetworkRetries)
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
	}

	api := &client.API{}
	api.Init(config.SecretKey, backends)

	return &StripeAdapter{
		api:      api,
		currency: config.Currency,
		logger:   logger,
	}, nil
}

// GetSubscriptionItems lists the price lines of a subscription
func (a *StripeAdapter) GetSubscriptionItems(ctx context.Context, subscriptionID string) ([]billingapp.SubscriptionItem, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items")

	sub, err := a.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		a.logger.Error("Failed to get Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, mapStripeError("get subscription", err)
	}

	items := make([]billingapp.SubscriptionItem, 0)
	if sub.Items == nil {
		return items, nil
	}
	for _, item := range sub.Items.Data {
		si := billingapp.SubscriptionItem{ID: item.ID}
		if item.Price != nil {
			si.PriceID = item.Price.ID
		}
		items = append(items, si)
	}
	return items, nil
}

// AddSubscriptionItem attaches a metered price to a subscription. Stripe
// replays the cached response for a repeated idempotency key for 24h.
func (a *StripeAdapter) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*billingapp.SubscriptionItem, error) {
	params := &stripe.SubscriptionItemParams{
		Subscription:      stripe.String(subscriptionID),
		Price:             stripe.String(priceID),
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	item, err := a.api.SubscriptionItems.New(params)
	if err != nil {
		a.logger.Error("Failed to add Stripe subscription item",
			zap.String("subscription_id", subscriptionID),
			zap.String("price_id", priceID),
			zap.Error(err))
		return nil, mapStripeError("add subscription item", err)
	}

	a.logger.Info("Added Stripe subscription item",
		zap.String("subscription_id", subscriptionID),
		zap.String("item_id", item.ID),
		zap.String("price_id", priceID))

	return &billingapp.SubscriptionItem{ID: item.ID, PriceID: priceID}, nil
}

// DeleteSubscriptionItem removes a price line without proration. Usage already
// reported for the period stays on the upcoming invoice.
func (a *StripeAdapter) DeleteSubscriptionItem(ctx context.Context, itemID string) error {
	params := &stripe.SubscriptionItemParams{
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx

	if _, err := a.api.SubscriptionItems.Del(itemID, params); err != nil {
		a.logger.Error("Failed to delete Stripe subscription item",
			zap.String("item_id", itemID),
			zap.Error(err))
		return mapStripeError("delete subscription item", err)
	}

	a.logger.Info("Deleted Stripe subscription item", zap.String("item_id", itemID))
	return nil
}

// mapStripeError keeps the Stripe error in the chain and adds the matching
// domain error for lookups that found nothing.
func mapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("stripe: %s: %w: %w", op, shared.ErrNotFound, err)
		}
	}
	return fmt.Errorf("stripe: failed to %s: %w", op, err)
}

// IsRateLimited reports whether err is a Stripe 429
func IsRateLimited(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusTooManyRequests
}
