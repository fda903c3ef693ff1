package models

import (
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/google/uuid"
)

// BillingAccountModel is the persistence model for account.BillingAccount.
// Its row is also the per-tenant lock taken by every balance mutation.
type BillingAccountModel struct {
	TenantID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tier                 string    `gorm:"type:varchar(20);not null;default:'launch'"`
	OverageEnabled       bool      `gorm:"not null;default:false"`
	StripeCustomerID     string    `gorm:"type:varchar(255);index"`
	StripeSubscriptionID string    `gorm:"type:varchar(255)"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingAccountModel) TableName() string {
	return "billing_accounts"
}

// ToDomain converts the persistence model to a domain BillingAccount
func (m *BillingAccountModel) ToDomain() *account.BillingAccount {
	return &account.BillingAccount{
		TenantID:             m.TenantID,
		Tier:                 tier.Tier(m.Tier),
		OverageEnabled:       m.OverageEnabled,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain BillingAccount
func (m *BillingAccountModel) FromDomain(a *account.BillingAccount) {
	m.TenantID = a.TenantID
	m.Tier = a.Tier.String()
	m.OverageEnabled = a.OverageEnabled
	m.StripeCustomerID = a.StripeCustomerID
	m.StripeSubscriptionID = a.StripeSubscriptionID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// LedgerEntryModel is one row of the append-only credit ledger
type LedgerEntryModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_credit_ledger_sequence,priority:1"`
	CreditType         string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_credit_ledger_sequence,priority:2"`
	Sequence           int64     `gorm:"not null;uniqueIndex:idx_credit_ledger_sequence,priority:3"`
	Kind               string    `gorm:"type:varchar(10);not null"`
	Amount             int64     `gorm:"not null"`
	BalanceAfter       int64     `gorm:"not null"`
	Description        string    `gorm:"type:text"`
	ExternalPaymentRef string    `gorm:"type:varchar(255);index"`
	CreatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "credit_ledger_entries"
}

// ToDomain rebuilds the tagged ledger entry
func (m *LedgerEntryModel) ToDomain() (credit.Entry, error) {
	return credit.Rehydrate(credit.EntryKind(m.Kind), credit.EntryHeader{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		CreditType:         credit.Type(m.CreditType),
		Sequence:           m.Sequence,
		Amount:             m.Amount,
		BalanceAfter:       m.BalanceAfter,
		Description:        m.Description,
		ExternalPaymentRef: m.ExternalPaymentRef,
		CreatedAt:          m.CreatedAt,
	})
}

// FromDomain populates the persistence model from a ledger entry
func (m *LedgerEntryModel) FromDomain(e credit.Entry) {
	h := e.Header()
	m.ID = h.ID
	m.TenantID = h.TenantID
	m.CreditType = h.CreditType.String()
	m.Sequence = h.Sequence
	m.Kind = string(e.Kind())
	m.Amount = h.Amount
	m.BalanceAfter = h.BalanceAfter
	m.Description = h.Description
	m.ExternalPaymentRef = h.ExternalPaymentRef
	m.CreatedAt = h.CreatedAt
}

// PackModel is the persistence model for pack.Pack
type PackModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index:idx_minute_packs_tenant_purchased,priority:1"`
	PackType     string    `gorm:"type:varchar(20);not null"`
	MinutesTotal int64     `gorm:"not null"`
	MinutesUsed  int64     `gorm:"not null;default:0"`
	PurchasedAt  time.Time `gorm:"not null;index:idx_minute_packs_tenant_purchased,priority:2"`
	ExpiresAt    *time.Time
	// NULL when the pack was granted without a payment
	ExternalPaymentRef *string `gorm:"type:varchar(255);uniqueIndex"`
}

// TableName returns the table name for GORM
func (PackModel) TableName() string {
	return "minute_packs"
}

// ToDomain converts the persistence model to a domain Pack
func (m *PackModel) ToDomain() *pack.Pack {
	p := &pack.Pack{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		PackType:     pack.Type(m.PackType),
		MinutesTotal: m.MinutesTotal,
		MinutesUsed:  m.MinutesUsed,
		PurchasedAt:  m.PurchasedAt,
		ExpiresAt:    m.ExpiresAt,
	}
	if m.ExternalPaymentRef != nil {
		p.ExternalPaymentRef = *m.ExternalPaymentRef
	}
	return p
}

// FromDomain populates the persistence model from a domain Pack
func (m *PackModel) FromDomain(p *pack.Pack) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.TenantID = p.TenantID
	m.PackType = p.PackType.String()
	m.MinutesTotal = p.MinutesTotal
	m.MinutesUsed = p.MinutesUsed
	m.PurchasedAt = p.PurchasedAt
	m.ExpiresAt = p.ExpiresAt
	m.ExternalPaymentRef = nil
	if p.ExternalPaymentRef != "" {
		ref := p.ExternalPaymentRef
		m.ExternalPaymentRef = &ref
	}
}
