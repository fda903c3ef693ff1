package handler

import (
	"context"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	creditapp "github.com/audithero/apostle-video-platform-sub004/internal/application/credit"
	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockCreditService struct{ mock.Mock }

func (m *mockCreditService) GetBalance(ctx context.Context, tenantID uuid.UUID, ct credit.Type) (int64, error) {
	args := m.Called(ctx, tenantID, ct)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCreditService) GetAllBalances(ctx context.Context, tenantID uuid.UUID) (map[credit.Type]int64, error) {
	args := m.Called(ctx, tenantID)
	balances, _ := args.Get(0).(map[credit.Type]int64)
	return balances, args.Error(1)
}

func (m *mockCreditService) Debit(ctx context.Context, tenantID uuid.UUID, ct credit.Type, amount int64, description string) (*creditapp.DebitResult, error) {
	args := m.Called(ctx, tenantID, ct, amount, description)
	result, _ := args.Get(0).(*creditapp.DebitResult)
	return result, args.Error(1)
}

func (m *mockCreditService) Credit(ctx context.Context, tenantID uuid.UUID, ct credit.Type, amount int64, description, externalRef string) (int64, error) {
	args := m.Called(ctx, tenantID, ct, amount, description, externalRef)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCreditService) AllocateMonthly(ctx context.Context, tenantID uuid.UUID, t tier.Tier) (map[credit.Type]int64, error) {
	args := m.Called(ctx, tenantID, t)
	balances, _ := args.Get(0).(map[credit.Type]int64)
	return balances, args.Error(1)
}

func (m *mockCreditService) PurchaseAddon(ctx context.Context, tenantID uuid.UUID, addon credit.AddonType, externalRef string) (map[credit.Type]int64, error) {
	args := m.Called(ctx, tenantID, addon, externalRef)
	balances, _ := args.Get(0).(map[credit.Type]int64)
	return balances, args.Error(1)
}

func (m *mockCreditService) History(ctx context.Context, tenantID uuid.UUID, ct credit.Type, limit int) ([]credit.Entry, error) {
	args := m.Called(ctx, tenantID, ct, limit)
	entries, _ := args.Get(0).([]credit.Entry)
	return entries, args.Error(1)
}

func (m *mockCreditService) Audit(ctx context.Context, tenantID uuid.UUID, ct credit.Type) (*creditapp.AuditResult, error) {
	args := m.Called(ctx, tenantID, ct)
	result, _ := args.Get(0).(*creditapp.AuditResult)
	return result, args.Error(1)
}

type mockPackService struct{ mock.Mock }

func (m *mockPackService) PurchasePack(ctx context.Context, tenantID uuid.UUID, packType pack.Type, ref string) (*packapp.PurchaseResult, error) {
	args := m.Called(ctx, tenantID, packType, ref)
	result, _ := args.Get(0).(*packapp.PurchaseResult)
	return result, args.Error(1)
}

func (m *mockPackService) CreateCheckout(ctx context.Context, tenantID uuid.UUID, packType pack.Type) (*packapp.CheckoutSession, error) {
	args := m.Called(ctx, tenantID, packType)
	session, _ := args.Get(0).(*packapp.CheckoutSession)
	return session, args.Error(1)
}

func (m *mockPackService) DebitMinutes(ctx context.Context, tenantID uuid.UUID, minutes int64) (*packapp.DebitResult, error) {
	args := m.Called(ctx, tenantID, minutes)
	result, _ := args.Get(0).(*packapp.DebitResult)
	return result, args.Error(1)
}

func (m *mockPackService) GetBalance(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPackService) GetPacks(ctx context.Context, tenantID uuid.UUID) ([]packapp.PackView, error) {
	args := m.Called(ctx, tenantID)
	views, _ := args.Get(0).([]packapp.PackView)
	return views, args.Error(1)
}

type mockOverageService struct{ mock.Mock }

func (m *mockOverageService) ReportUsageToStripe(ctx context.Context, tenantID uuid.UUID) (*billingapp.ReportResult, error) {
	args := m.Called(ctx, tenantID)
	result, _ := args.Get(0).(*billingapp.ReportResult)
	return result, args.Error(1)
}

func (m *mockOverageService) EnableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*billingapp.SubscriptionChange, error) {
	args := m.Called(ctx, tenantID)
	change, _ := args.Get(0).(*billingapp.SubscriptionChange)
	return change, args.Error(1)
}

func (m *mockOverageService) DisableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*billingapp.SubscriptionChange, error) {
	args := m.Called(ctx, tenantID)
	change, _ := args.Get(0).(*billingapp.SubscriptionChange)
	return change, args.Error(1)
}

func (m *mockOverageService) GetOverageSummary(ctx context.Context, tenantID uuid.UUID) (*billingapp.OverageSummary, error) {
	args := m.Called(ctx, tenantID)
	summary, _ := args.Get(0).(*billingapp.OverageSummary)
	return summary, args.Error(1)
}

type mockAdvisor struct{ mock.Mock }

func (m *mockAdvisor) CheckAutoUpgradeRecommendation(ctx context.Context, tenantID uuid.UUID) (*overage.Recommendation, error) {
	args := m.Called(ctx, tenantID)
	rec, _ := args.Get(0).(*overage.Recommendation)
	return rec, args.Error(1)
}

type mockEntitlements struct{ mock.Mock }

func (m *mockEntitlements) CheckCanPerformAction(ctx context.Context, tenantID uuid.UUID, metric tier.Metric, currentUsage *int64) (*tier.ActionCheck, error) {
	args := m.Called(ctx, tenantID, metric, currentUsage)
	check, _ := args.Get(0).(*tier.ActionCheck)
	return check, args.Error(1)
}

type mockWebhookProcessor struct{ mock.Mock }

func (m *mockWebhookProcessor) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*billingapp.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	result, _ := args.Get(0).(*billingapp.WebhookResult)
	return result, args.Error(1)
}
