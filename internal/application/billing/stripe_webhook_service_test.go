package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

type webhookEnv struct {
	packs       *mockPackPurchaser
	addons      *mockAddonPurchaser
	accounts    *mockAccountRepository
	idempotency *memoryIdempotencyStore
	service     *StripeWebhookService
}

func newWebhookEnv() *webhookEnv {
	env := &webhookEnv{
		packs:       new(mockPackPurchaser),
		addons:      new(mockAddonPurchaser),
		accounts:    new(mockAccountRepository),
		idempotency: newMemoryIdempotencyStore(),
	}
	env.service = NewStripeWebhookService(StripeWebhookServiceConfig{
		WebhookSecret: testWebhookSecret,
		Packs:         env.packs,
		Addons:        env.addons,
		Accounts:      env.accounts,
		Idempotency:   env.idempotency,
		Clock:         fixedClock,
		Logger:        zap.NewNop(),
	})
	return env
}

// signedEvent builds a webhook payload for obj and signs it with the test secret
func signedEvent(t *testing.T, id, eventType string, obj interface{}) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func rawEvent(t *testing.T, eventType string, obj interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func packIntent(tenantID uuid.UUID, packType string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "pi_123",
		"object": "payment_intent",
		"metadata": map[string]string{
			MetadataKind:     PurchaseKindPack,
			MetadataTenantID: tenantID.String(),
			MetadataPackType: packType,
		},
	}
}

// =============================================================================
// ProcessWebhook
// =============================================================================

func TestProcessWebhook_InvalidSignature(t *testing.T) {
	env := newWebhookEnv()

	result, err := env.service.ProcessWebhook(context.Background(), []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`), "t=1,v1=bogus")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestProcessWebhook_FulfilsPackOnce(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	tenantID := uuid.New()

	payload, header := signedEvent(t, "evt_pack_1", "payment_intent.succeeded", packIntent(tenantID, "creator"))
	env.packs.On("PurchasePack", mock.Anything, tenantID, pack.TypeCreator, "pi_123").
		Return(&packapp.PurchaseResult{Pack: &pack.Pack{BaseEntity: shared.BaseEntity{ID: uuid.New()}}}, nil).Once()

	first, err := env.service.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, first.Processed)
	assert.Equal(t, "evt_pack_1", first.EventID)

	second, err := env.service.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Processed)

	env.packs.AssertNumberOfCalls(t, "PurchasePack", 1)
}

func TestProcessWebhook_ConsumerSpan(t *testing.T) {
	sr := recordSpans(t)
	env := newWebhookEnv()
	tenantID := uuid.New()

	payload, header := signedEvent(t, "evt_pack_span", "payment_intent.succeeded", packIntent(tenantID, "studio"))
	env.packs.On("PurchasePack", mock.Anything, tenantID, pack.TypeStudio, "pi_123").
		Return(&packapp.PurchaseResult{Pack: &pack.Pack{BaseEntity: shared.BaseEntity{ID: uuid.New()}}}, nil).Once()

	_, err := env.service.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	span := endedSpan(t, sr, "billing.process_webhook")
	assert.Equal(t, trace.SpanKindConsumer, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestProcessWebhook_FailureReleasesEventForRetry(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	tenantID := uuid.New()

	payload, header := signedEvent(t, "evt_pack_2", "payment_intent.succeeded", packIntent(tenantID, "starter"))
	env.packs.On("PurchasePack", mock.Anything, tenantID, pack.TypeStarter, "pi_123").
		Return(nil, errors.New("db unavailable")).Once()
	env.packs.On("PurchasePack", mock.Anything, tenantID, pack.TypeStarter, "pi_123").
		Return(&packapp.PurchaseResult{Pack: &pack.Pack{BaseEntity: shared.BaseEntity{ID: uuid.New()}}}, nil).Once()

	result, err := env.service.ProcessWebhook(ctx, payload, header)
	require.Error(t, err)
	assert.False(t, result.Processed)

	processed, _ := env.idempotency.IsProcessed(ctx, "evt_pack_2")
	assert.False(t, processed)

	result, err = env.service.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	env.packs.AssertExpectations(t)
}

func TestProcessWebhook_UnhandledType(t *testing.T) {
	env := newWebhookEnv()

	payload, header := signedEvent(t, "evt_other", "invoice.created", map[string]interface{}{"id": "in_1", "object": "invoice"})

	result, err := env.service.ProcessWebhook(context.Background(), payload, header)

	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, "event type not handled", result.Message)
}

// =============================================================================
// Purchase fulfilment
// =============================================================================

func TestHandleCheckoutCompleted(t *testing.T) {
	tenantID := uuid.New()
	metadata := map[string]string{
		MetadataKind:      PurchaseKindAddon,
		MetadataTenantID:  tenantID.String(),
		MetadataAddonType: "boost",
	}

	t.Run("paid session uses payment intent as reference", func(t *testing.T) {
		env := newWebhookEnv()
		ctx := context.Background()
		event := rawEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":             "cs_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"payment_intent": "pi_777",
			"metadata":       metadata,
		})
		env.addons.On("PurchaseAddon", ctx, tenantID, credit.AddonBoost, "pi_777").
			Return(map[credit.Type]int64{credit.TypeAICourse: 20}, nil)

		msg, err := env.service.handleCheckoutCompleted(ctx, event)

		require.NoError(t, err)
		assert.Empty(t, msg)
		env.addons.AssertExpectations(t)
	})

	t.Run("unpaid session is ignored", func(t *testing.T) {
		env := newWebhookEnv()
		event := rawEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":             "cs_2",
			"object":         "checkout.session",
			"payment_status": "unpaid",
			"metadata":       metadata,
		})

		msg, err := env.service.handleCheckoutCompleted(context.Background(), event)

		require.NoError(t, err)
		assert.Equal(t, "checkout session not paid", msg)
		env.addons.AssertNotCalled(t, "PurchaseAddon", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("session without payment intent falls back to session id", func(t *testing.T) {
		env := newWebhookEnv()
		ctx := context.Background()
		event := rawEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":             "cs_3",
			"object":         "checkout.session",
			"payment_status": "paid",
			"metadata":       metadata,
		})
		env.addons.On("PurchaseAddon", ctx, tenantID, credit.AddonBoost, "cs_3").
			Return(map[credit.Type]int64{}, nil)

		_, err := env.service.handleCheckoutCompleted(ctx, event)

		require.NoError(t, err)
		env.addons.AssertExpectations(t)
	})
}

func TestHandlePaymentSucceeded_IgnoredMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		message  string
	}{
		{name: "foreign payment", metadata: map[string]string{}, message: "not a metering purchase"},
		{name: "bad tenant", metadata: map[string]string{MetadataKind: PurchaseKindPack, MetadataTenantID: "nope"}, message: "missing tenant"},
		{
			name:     "unknown pack",
			metadata: map[string]string{MetadataKind: PurchaseKindPack, MetadataTenantID: uuid.NewString(), MetadataPackType: "mega"},
			message:  "unknown pack type",
		},
		{
			name:     "unknown addon",
			metadata: map[string]string{MetadataKind: PurchaseKindAddon, MetadataTenantID: uuid.NewString(), MetadataAddonType: "turbo"},
			message:  "unknown add-on type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWebhookEnv()
			event := rawEvent(t, "payment_intent.succeeded", map[string]interface{}{
				"id":       "pi_1",
				"object":   "payment_intent",
				"metadata": tt.metadata,
			})

			msg, err := env.service.handlePaymentSucceeded(context.Background(), event)

			require.NoError(t, err)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestHandlePaymentSucceeded_DuplicatePack(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	tenantID := uuid.New()
	event := rawEvent(t, "payment_intent.succeeded", packIntent(tenantID, "studio"))

	env.packs.On("PurchasePack", ctx, tenantID, pack.TypeStudio, "pi_123").
		Return(&packapp.PurchaseResult{Pack: &pack.Pack{BaseEntity: shared.BaseEntity{ID: uuid.New()}}, Duplicate: true}, nil)

	msg, err := env.service.handlePaymentSucceeded(ctx, event)

	require.NoError(t, err)
	assert.Equal(t, "payment already fulfilled", msg)
}

// =============================================================================
// Subscription events
// =============================================================================

func TestHandleSubscriptionChanged_LinksByCustomer(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	tenantID := uuid.New()
	acct := testAccount(tenantID, tier.TierLaunch, false, "")

	event := rawEvent(t, "customer.subscription.created", map[string]interface{}{
		"id":       "sub_new",
		"object":   "subscription",
		"customer": "cus_test",
		"status":   "active",
		"metadata": map[string]string{MetadataTier: "grow"},
	})
	env.accounts.On("FindByStripeCustomer", ctx, "cus_test").Return(acct, nil)
	env.accounts.On("Save", ctx, acct).Return(nil)

	msg, err := env.service.handleSubscriptionChanged(ctx, event)

	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, "sub_new", acct.StripeSubscriptionID)
	assert.Equal(t, tier.TierGrow, acct.Tier)
	assert.Equal(t, fixedNow, acct.UpdatedAt)
	env.accounts.AssertExpectations(t)
}

func TestHandleSubscriptionChanged_CreatesAccountFromTenantMetadata(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	tenantID := uuid.New()

	event := rawEvent(t, "customer.subscription.created", map[string]interface{}{
		"id":       "sub_first",
		"object":   "subscription",
		"customer": "cus_new",
		"metadata": map[string]string{MetadataTenantID: tenantID.String(), MetadataTier: "scale"},
	})
	env.accounts.On("FindByTenant", ctx, tenantID).Return(nil, shared.ErrNotFound)

	var saved *account.BillingAccount
	env.accounts.On("Save", ctx, mock.AnythingOfType("*account.BillingAccount")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*account.BillingAccount) }).
		Return(nil)

	_, err := env.service.handleSubscriptionChanged(ctx, event)

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, tenantID, saved.TenantID)
	assert.Equal(t, tier.TierScale, saved.Tier)
	assert.Equal(t, "cus_new", saved.StripeCustomerID)
	assert.Equal(t, "sub_first", saved.StripeSubscriptionID)
}

func TestHandleSubscriptionChanged_UnknownCustomer(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	event := rawEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id":       "sub_x",
		"object":   "subscription",
		"customer": "cus_unknown",
	})
	env.accounts.On("FindByStripeCustomer", ctx, "cus_unknown").Return(nil, shared.ErrNotFound)

	msg, err := env.service.handleSubscriptionChanged(ctx, event)

	require.NoError(t, err)
	assert.Equal(t, "billing account not found", msg)
	env.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	acct := testAccount(uuid.New(), tier.TierGrow, true, "sub_old")

	event := rawEvent(t, "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_old",
		"object":   "subscription",
		"customer": "cus_test",
	})
	env.accounts.On("FindByStripeCustomer", ctx, "cus_test").Return(acct, nil)
	env.accounts.On("Save", ctx, acct).Return(nil)

	_, err := env.service.handleSubscriptionDeleted(ctx, event)

	require.NoError(t, err)
	assert.Empty(t, acct.StripeSubscriptionID)
	assert.False(t, acct.OverageEnabled)
	env.accounts.AssertExpectations(t)
}

func TestHandleSubscriptionDeleted_OtherSubscriptionIgnored(t *testing.T) {
	env := newWebhookEnv()
	ctx := context.Background()
	acct := testAccount(uuid.New(), tier.TierGrow, true, "sub_current")

	event := rawEvent(t, "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_previous",
		"object":   "subscription",
		"customer": "cus_test",
	})
	env.accounts.On("FindByStripeCustomer", ctx, "cus_test").Return(acct, nil)

	msg, err := env.service.handleSubscriptionDeleted(ctx, event)

	require.NoError(t, err)
	assert.Equal(t, "subscription not linked", msg)
	assert.Equal(t, "sub_current", acct.StripeSubscriptionID)
	env.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
