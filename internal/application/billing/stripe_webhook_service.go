package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metadata keys set on checkout sessions and payment intents
const (
	MetadataKind      = "kind"
	MetadataTenantID  = "tenant_id"
	MetadataPackType  = "pack_type"
	MetadataAddonType = "addon_type"
	MetadataTier      = "tier"

	PurchaseKindPack  = "pack"
	PurchaseKindAddon = "addon"
)

// ErrInvalidSignature is returned when a webhook payload fails verification
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// PackPurchaser creates packs for completed payments
type PackPurchaser interface {
	PurchasePack(ctx context.Context, tenantID uuid.UUID, packType pack.Type, externalPaymentRef string) (*packapp.PurchaseResult, error)
}

// AddonPurchaser applies credit add-ons for completed payments
type AddonPurchaser interface {
	PurchaseAddon(ctx context.Context, tenantID uuid.UUID, addon credit.AddonType, externalRef string) (map[credit.Type]int64, error)
}

// StripeWebhookService verifies Stripe webhook deliveries and fulfils the
// purchases and subscription changes they announce
type StripeWebhookService struct {
	webhookSecret  string
	packs          PackPurchaser
	addons         AddonPurchaser
	accounts       account.Repository
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	clock          shared.Clock
	logger         *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	WebhookSecret string
	Packs         PackPurchaser
	Addons        AddonPurchaser
	Accounts      account.Repository
	// Idempotency deduplicates redelivered events; optional
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Clock          shared.Clock
	Logger         *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	s := &StripeWebhookService{
		webhookSecret:  cfg.WebhookSecret,
		packs:          cfg.Packs,
		addons:         cfg.Addons,
		accounts:       cfg.Accounts,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}
	if s.idempotencyTTL <= 0 {
		s.idempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if s.clock == nil {
		s.clock = shared.SystemClock
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and applies one Stripe event. Redelivered events
// are acknowledged without being applied again.
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "process_webhook",
		telemetry.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Warn("Failed to verify webhook signature", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrEventType, string(event.Type), "event_id", event.ID)

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, event.ID, s.idempotencyTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("mark webhook event: %w", err)
		}
		if !fresh {
			s.logger.Info("Skipping already processed webhook event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			result.Duplicate = true
			result.Message = "event already processed"
			return result, nil
		}
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	message, err := s.dispatch(ctx, event)
	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		telemetry.RecordError(span, err)
		if s.idempotency != nil {
			if unmarkErr := s.idempotency.Unmark(ctx, event.ID); unmarkErr != nil {
				s.logger.Error("Failed to release webhook event for retry",
					zap.String("event_id", event.ID),
					zap.Error(unmarkErr))
			}
		}
		result.Message = err.Error()
		return result, err
	}

	result.Processed = message == ""
	result.Message = message
	telemetry.SetOK(span)
	return result, nil
}

// dispatch applies the event. A non-empty message means the event was
// acknowledged without any change.
func (s *StripeWebhookService) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "payment_intent.succeeded":
		return s.handlePaymentSucceeded(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		return "event type not handled", nil
	}
}

// handleCheckoutCompleted handles checkout.session.completed events
func (s *StripeWebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "checkout session not paid", nil
	}

	// the payment intent ID is shared with payment_intent.succeeded so both
	// deliveries resolve to one fulfilment
	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	return s.fulfil(ctx, session.Metadata, ref)
}

// handlePaymentSucceeded handles payment_intent.succeeded events
func (s *StripeWebhookService) handlePaymentSucceeded(ctx context.Context, event stripe.Event) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	return s.fulfil(ctx, intent.Metadata, intent.ID)
}

func (s *StripeWebhookService) fulfil(ctx context.Context, metadata map[string]string, ref string) (string, error) {
	kind := metadata[MetadataKind]
	if kind != PurchaseKindPack && kind != PurchaseKindAddon {
		return "not a metering purchase", nil
	}
	tenantID, err := uuid.Parse(metadata[MetadataTenantID])
	if err != nil {
		s.logger.Warn("Purchase metadata carries no valid tenant",
			zap.String("external_ref", ref),
			zap.String("tenant_id", metadata[MetadataTenantID]))
		return "missing tenant", nil
	}

	switch kind {
	case PurchaseKindPack:
		packType, err := pack.ParseType(metadata[MetadataPackType])
		if err != nil {
			s.logger.Warn("Unknown pack type in purchase metadata",
				zap.String("external_ref", ref),
				zap.String("pack_type", metadata[MetadataPackType]))
			return "unknown pack type", nil
		}
		res, err := s.packs.PurchasePack(ctx, tenantID, packType, ref)
		if err != nil {
			return "", fmt.Errorf("fulfil pack purchase: %w", err)
		}
		if res.Duplicate {
			return "payment already fulfilled", nil
		}
	case PurchaseKindAddon:
		addon, err := credit.ParseAddonType(metadata[MetadataAddonType])
		if err != nil {
			s.logger.Warn("Unknown add-on type in purchase metadata",
				zap.String("external_ref", ref),
				zap.String("addon_type", metadata[MetadataAddonType]))
			return "unknown add-on type", nil
		}
		if _, err := s.addons.PurchaseAddon(ctx, tenantID, addon, ref); err != nil {
			return "", fmt.Errorf("fulfil add-on purchase: %w", err)
		}
	}

	s.logger.Info("Purchase fulfilled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("kind", kind),
		zap.String("external_ref", ref))
	return "", nil
}

// handleSubscriptionChanged handles customer.subscription.created and .updated events
func (s *StripeWebhookService) handleSubscriptionChanged(ctx context.Context, event stripe.Event) (string, error) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return "", fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	acct, err := s.accountForSubscription(ctx, &subscription)
	if err != nil {
		return "", err
	}
	if acct == nil {
		s.logger.Warn("Billing account not found for subscription",
			zap.String("subscription_id", subscription.ID))
		return "billing account not found", nil
	}

	now := s.clock()
	acct.StripeSubscriptionID = subscription.ID
	if subscription.Customer != nil && subscription.Customer.ID != "" {
		acct.StripeCustomerID = subscription.Customer.ID
	}
	if raw, ok := subscription.Metadata[MetadataTier]; ok {
		t, err := tier.Parse(raw)
		if err != nil {
			s.logger.Warn("Unknown tier in subscription metadata",
				zap.String("subscription_id", subscription.ID),
				zap.String("tier", raw))
		} else if err := acct.ChangeTier(t, now); err != nil {
			return "", err
		}
	}
	acct.UpdatedAt = now

	if err := s.accounts.Save(ctx, acct); err != nil {
		return "", fmt.Errorf("failed to save billing account: %w", err)
	}

	s.logger.Info("Subscription linked to billing account",
		zap.String("tenant_id", acct.TenantID.String()),
		zap.String("subscription_id", subscription.ID),
		zap.String("tier", acct.Tier.String()),
		zap.String("status", string(subscription.Status)))
	return "", nil
}

// handleSubscriptionDeleted handles customer.subscription.deleted events
func (s *StripeWebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) (string, error) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return "", fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	acct, err := s.accountForSubscription(ctx, &subscription)
	if err != nil {
		return "", err
	}
	if acct == nil || acct.StripeSubscriptionID != subscription.ID {
		return "subscription not linked", nil
	}

	now := s.clock()
	acct.StripeSubscriptionID = ""
	acct.SetOverage(false, now)
	acct.UpdatedAt = now
	if err := s.accounts.Save(ctx, acct); err != nil {
		return "", fmt.Errorf("failed to save billing account: %w", err)
	}

	s.logger.Info("Subscription removed from billing account",
		zap.String("tenant_id", acct.TenantID.String()),
		zap.String("subscription_id", subscription.ID))
	return "", nil
}

// accountForSubscription resolves the account by tenant metadata first,
// then by customer. A nil account with nil error means none matched.
func (s *StripeWebhookService) accountForSubscription(ctx context.Context, subscription *stripe.Subscription) (*account.BillingAccount, error) {
	if raw := subscription.Metadata[MetadataTenantID]; raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err == nil {
			acct, err := s.accounts.FindByTenant(ctx, tenantID)
			switch {
			case err == nil:
				return acct, nil
			case errors.Is(err, shared.ErrNotFound):
				return account.NewBillingAccount(tenantID, tier.TierLaunch, s.clock())
			default:
				return nil, fmt.Errorf("failed to find billing account: %w", err)
			}
		}
	}

	if subscription.Customer == nil || subscription.Customer.ID == "" {
		return nil, nil
	}
	acct, err := s.accounts.FindByStripeCustomer(ctx, subscription.Customer.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find billing account: %w", err)
	}
	return acct, nil
}
