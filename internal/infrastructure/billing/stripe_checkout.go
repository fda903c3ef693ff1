package billing

import (
	"context"
	"fmt"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// CreatePackCheckout opens a one-off hosted checkout for a minute pack. The
// tenant and pack type travel as metadata on both the session and its payment
// intent, which is what the webhook fulfils from.
func (a *StripeAdapter) CreatePackCheckout(ctx context.Context, req packapp.CheckoutRequest) (*packapp.CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("stripe: checkout amount must be positive")
	}

	metadata := map[string]string{
		billingapp.MetadataKind:     billingapp.PurchaseKindPack,
		billingapp.MetadataTenantID: req.TenantID.String(),
		billingapp.MetadataPackType: req.PackType.String(),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.TenantID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(a.currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Name),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("pack_type", req.PackType.String()),
			zap.Error(err))
		return nil, mapStripeError("create checkout session", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("session_id", session.ID),
		zap.String("pack_type", req.PackType.String()))

	return &packapp.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
