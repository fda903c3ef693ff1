package credit

import (
	"context"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/application/metering"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock implementations

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) Append(ctx context.Context, entry credit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockLedgerRepository) Latest(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (credit.Entry, error) {
	args := m.Called(ctx, tenantID, creditType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(credit.Entry), args.Error(1)
}

func (m *mockLedgerRepository) LatestAll(ctx context.Context, tenantID uuid.UUID) (map[credit.Type]credit.Entry, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[credit.Type]credit.Entry), args.Error(1)
}

func (m *mockLedgerRepository) List(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error) {
	args := m.Called(ctx, tenantID, creditType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]credit.Entry), args.Error(1)
}

func (m *mockLedgerRepository) ListRecent(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error) {
	args := m.Called(ctx, tenantID, creditType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]credit.Entry), args.Error(1)
}

func (m *mockLedgerRepository) ExistsByPaymentRef(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, ref string) (bool, error) {
	args := m.Called(ctx, tenantID, creditType, ref)
	return args.Bool(0), args.Error(1)
}

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
	args := m.Called(ctx, a)
	return args.Error(0)
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

// fakeUnitOfWork runs fn directly against the mocks
type fakeUnitOfWork struct {
	accounts *mockAccountRepository
	ledger   *mockLedgerRepository
	calls    int
}

func (u *fakeUnitOfWork) Execute(_ context.Context, fn func(tx metering.Repositories) error) error {
	u.calls++
	return fn(u)
}

func (u *fakeUnitOfWork) Accounts() account.Repository    { return u.accounts }
func (u *fakeUnitOfWork) Ledger() credit.LedgerRepository { return u.ledger }
func (u *fakeUnitOfWork) Packs() pack.Repository          { return nil }

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	uow      *fakeUnitOfWork
	ledger   *mockLedgerRepository
	accounts *mockAccountRepository
	tenantID uuid.UUID
}

func newTestEnv() *testEnv {
	ledger := new(mockLedgerRepository)
	accounts := new(mockAccountRepository)
	uow := &fakeUnitOfWork{accounts: accounts, ledger: ledger}
	svc := NewService(uow, ledger, nil, ServiceConfig{Clock: func() time.Time { return fixedNow }})
	return &testEnv{svc: svc, uow: uow, ledger: ledger, accounts: accounts, tenantID: uuid.New()}
}

func (e *testEnv) expectLock() {
	acct, _ := account.NewBillingAccount(e.tenantID, tier.TierLaunch, fixedNow)
	e.accounts.On("LockForUpdate", mock.Anything, e.tenantID).Return(acct, nil)
}

func entryAt(tenantID uuid.UUID, ct credit.Type, seq, amount, balance int64) credit.Entry {
	return &credit.DeltaEntry{EntryHeader: credit.EntryHeader{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CreditType:   ct,
		Sequence:     seq,
		Amount:       amount,
		BalanceAfter: balance,
		CreatedAt:    fixedNow,
	}}
}
