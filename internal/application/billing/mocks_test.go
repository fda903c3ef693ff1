package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory span recorder as the global provider
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

var fixedNow = time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// =============================================================================
// Account repository
// =============================================================================

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*account.BillingAccount, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.BillingAccount), args.Error(1)
}

func (m *mockAccountRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.BillingAccount), args.Error(1)
}

func (m *mockAccountRepository) Save(ctx context.Context, a *account.BillingAccount) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAccountRepository) LockForUpdate(ctx context.Context, tenantID uuid.UUID) (*account.BillingAccount, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.BillingAccount), args.Error(1)
}

func (m *mockAccountRepository) ListOverageEnabled(ctx context.Context) ([]*account.BillingAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.BillingAccount), args.Error(1)
}

func (m *mockAccountRepository) ListAll(ctx context.Context) ([]*account.BillingAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.BillingAccount), args.Error(1)
}

// =============================================================================
// Usage aggregator and report logs
// =============================================================================

type mockUsageAggregator struct {
	mock.Mock
}

func (m *mockUsageAggregator) GetCurrentPeriodUsage(ctx context.Context, tenantID uuid.UUID) (*overage.Usage, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*overage.Usage), args.Error(1)
}

type mockReportLogRepository struct {
	mock.Mock
}

func (m *mockReportLogRepository) Save(ctx context.Context, log *overage.ReportLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockReportLogRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*overage.ReportLog, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*overage.ReportLog), args.Error(1)
}

// =============================================================================
// Billing gateway
// =============================================================================

type mockBillingGateway struct {
	mock.Mock
}

func (m *mockBillingGateway) GetSubscriptionItems(ctx context.Context, subscriptionID string) ([]SubscriptionItem, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SubscriptionItem), args.Error(1)
}

func (m *mockBillingGateway) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*SubscriptionItem, error) {
	args := m.Called(ctx, subscriptionID, priceID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubscriptionItem), args.Error(1)
}

func (m *mockBillingGateway) DeleteSubscriptionItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *mockBillingGateway) ReportUsage(ctx context.Context, input UsageRecordInput) (*UsageRecordOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UsageRecordOutput), args.Error(1)
}

// =============================================================================
// Locker, idempotency store, purchasers
// =============================================================================

// stubLocker grants the lock unless held is set
type stubLocker struct {
	mu       sync.Mutex
	held     bool
	released int
}

func (l *stubLocker) TryLock(_ context.Context, _ string, _ uuid.UUID, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
	}, true, nil
}

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Unmark(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *memoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryIdempotencyStore) Close() error { return nil }

type mockPackPurchaser struct {
	mock.Mock
}

func (m *mockPackPurchaser) PurchasePack(ctx context.Context, tenantID uuid.UUID, packType pack.Type, ref string) (*packapp.PurchaseResult, error) {
	args := m.Called(ctx, tenantID, packType, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*packapp.PurchaseResult), args.Error(1)
}

type mockAddonPurchaser struct {
	mock.Mock
}

func (m *mockAddonPurchaser) PurchaseAddon(ctx context.Context, tenantID uuid.UUID, addon credit.AddonType, ref string) (map[credit.Type]int64, error) {
	args := m.Called(ctx, tenantID, addon, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[credit.Type]int64), args.Error(1)
}

type mockCreditBalances struct {
	mock.Mock
}

func (m *mockCreditBalances) GetBalance(ctx context.Context, tenantID uuid.UUID, ct credit.Type) (int64, error) {
	args := m.Called(ctx, tenantID, ct)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

var testPrices = MeteredPrices{
	tier.MetricVideoStorageSeconds: "price_storage",
	tier.MetricStudents:            "price_students",
	tier.MetricEmailsPerMonth:      "price_emails",
}

func testAccount(tenantID uuid.UUID, t tier.Tier, overageEnabled bool, subscriptionID string) *account.BillingAccount {
	return &account.BillingAccount{
		TenantID:             tenantID,
		Tier:                 t,
		OverageEnabled:       overageEnabled,
		StripeCustomerID:     "cus_test",
		StripeSubscriptionID: subscriptionID,
		CreatedAt:            fixedNow.AddDate(0, -2, 0),
		UpdatedAt:            fixedNow.AddDate(0, -2, 0),
	}
}

func periodUsage(tenantID uuid.UUID, storageSeconds, students, emails int64) *overage.Usage {
	return &overage.Usage{
		TenantID:            tenantID,
		PeriodStart:         time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:           time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		VideoStorageSeconds: storageSeconds,
		ActiveStudents:      students,
		EmailsSent:          emails,
	}
}
