package dto

import (
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/google/uuid"
)

// DebitCreditRequest spends credits of one type
type DebitCreditRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

// CreditAmountRequest grants credits of one type
type CreditAmountRequest struct {
	Amount             int64  `json:"amount" binding:"required,gt=0"`
	Description        string `json:"description" binding:"max=255"`
	ExternalPaymentRef string `json:"external_payment_ref" binding:"max=255"`
}

// AllocateMonthlyRequest resets every credit balance to the tier allocation
type AllocateMonthlyRequest struct {
	Tier string `json:"tier" binding:"required,tier"`
}

// PurchaseAddonRequest applies a paid add-on
type PurchaseAddonRequest struct {
	AddonType          string `json:"addon_type" binding:"required,addon_type"`
	ExternalPaymentRef string `json:"external_payment_ref" binding:"max=255"`
}

// PurchasePackRequest records a pack bought out of band
type PurchasePackRequest struct {
	PackType           string `json:"pack_type" binding:"required,pack_type"`
	ExternalPaymentRef string `json:"external_payment_ref" binding:"max=255"`
}

// PackCheckoutRequest starts a hosted checkout for a pack
type PackCheckoutRequest struct {
	PackType string `json:"pack_type" binding:"required,pack_type"`
}

// DebitMinutesRequest consumes rendering minutes
type DebitMinutesRequest struct {
	Minutes int64 `json:"minutes" binding:"required,gt=0"`
}

// EntitlementCheckRequest asks whether one more unit of a metric may be used.
// CurrentUsage overrides the usage read from the aggregator and credit ledger.
type EntitlementCheckRequest struct {
	Metric       string `json:"metric" binding:"required,metric"`
	CurrentUsage *int64 `json:"current_usage" binding:"omitempty,gte=0"`
}

// HistoryQuery bounds a ledger history read
type HistoryQuery struct {
	Limit int  `form:"limit" binding:"omitempty,min=1,max=500"`
	Audit bool `form:"audit"`
}

// BalanceResponse is one credit balance
type BalanceResponse struct {
	CreditType credit.Type `json:"credit_type"`
	Balance    int64       `json:"balance"`
}

// BalancesResponse lists every credit balance of a tenant
type BalancesResponse struct {
	TenantID uuid.UUID             `json:"tenant_id"`
	Balances map[credit.Type]int64 `json:"balances"`
}

// LedgerEntryResponse is one ledger line
type LedgerEntryResponse struct {
	ID                 uuid.UUID        `json:"id"`
	Kind               credit.EntryKind `json:"kind"`
	Sequence           int64            `json:"sequence"`
	Amount             int64            `json:"amount"`
	BalanceAfter       int64            `json:"balance_after"`
	Description        string           `json:"description,omitempty"`
	ExternalPaymentRef string           `json:"external_payment_ref,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// HistoryResponse is the newest-first ledger of one credit type
type HistoryResponse struct {
	CreditType credit.Type           `json:"credit_type"`
	Entries    []LedgerEntryResponse `json:"entries"`
	Audit      interface{}           `json:"audit,omitempty"`
}

// NewLedgerEntryResponses converts ledger entries for output
func NewLedgerEntryResponses(entries []credit.Entry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		h := e.Header()
		out = append(out, LedgerEntryResponse{
			ID:                 h.ID,
			Kind:               e.Kind(),
			Sequence:           h.Sequence,
			Amount:             h.Amount,
			BalanceAfter:       h.BalanceAfter,
			Description:        h.Description,
			ExternalPaymentRef: h.ExternalPaymentRef,
			CreatedAt:          h.CreatedAt,
		})
	}
	return out
}

// PackResponse is a purchased pack
type PackResponse struct {
	ID           uuid.UUID  `json:"id"`
	PackType     string     `json:"pack_type"`
	MinutesTotal int64      `json:"minutes_total"`
	MinutesUsed  int64      `json:"minutes_used"`
	PurchasedAt  time.Time  `json:"purchased_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Duplicate    bool       `json:"duplicate"`
}

// PackBalanceResponse is the minutes left across all consumable packs
type PackBalanceResponse struct {
	Minutes int64 `json:"minutes"`
}

// HealthResponse reports dependency health
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Scheduler string            `json:"scheduler,omitempty"`
	Time      time.Time         `json:"time"`
	Version   string            `json:"version,omitempty"`
}
