package credit

import (
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/google/uuid"
)

// EntryKind tags how an entry moves the balance
type EntryKind string

const (
	// EntryKindDelta adds Amount (possibly negative) to the previous balance
	EntryKindDelta EntryKind = "DELTA"

	// EntryKindReset replaces the balance with Amount
	EntryKindReset EntryKind = "RESET"
)

// ErrLedgerCorrupt is returned by Replay when a stored balance disagrees with the entries before it
var ErrLedgerCorrupt = shared.NewDomainError("LEDGER_CORRUPT", "Ledger balance does not match its entries")

// IsValid returns true if the kind is known
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindDelta, EntryKindReset:
		return true
	}
	return false
}

// EntryHeader holds the fields every ledger entry carries
type EntryHeader struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	CreditType         Type
	Sequence           int64
	Amount             int64
	BalanceAfter       int64
	Description        string
	ExternalPaymentRef string
	CreatedAt          time.Time
}

// Header returns the shared entry fields
func (h *EntryHeader) Header() *EntryHeader {
	return h
}

// Entry is an immutable line in a tenant's credit ledger. It is implemented
// only by DeltaEntry and ResetEntry.
type Entry interface {
	Kind() EntryKind
	Header() *EntryHeader
	// apply computes the balance after this entry given the previous one
	apply(previous int64) int64
}

// DeltaEntry records a debit (negative Amount) or a credit (positive Amount)
type DeltaEntry struct {
	EntryHeader
}

// Kind implements Entry
func (DeltaEntry) Kind() EntryKind { return EntryKindDelta }

func (e DeltaEntry) apply(previous int64) int64 { return previous + e.Amount }

// ResetEntry records a monthly allocation that overwrites the balance
type ResetEntry struct {
	EntryHeader
}

// Kind implements Entry
func (ResetEntry) Kind() EntryKind { return EntryKindReset }

func (e ResetEntry) apply(int64) int64 { return e.Amount }

// Apply returns the balance after entry given the previous balance
func Apply(previous int64, entry Entry) int64 {
	return entry.apply(previous)
}

// EntryParams describes an entry to append after the current head of a ledger
type EntryParams struct {
	TenantID           uuid.UUID
	CreditType         Type
	Amount             int64
	Description        string
	ExternalPaymentRef string
}

// Head is the latest state of one (tenant, credit type) ledger
type Head struct {
	Sequence int64
	Balance  int64
}

// HeadOf returns the head described by the latest entry, or the empty head for nil
func HeadOf(latest Entry) Head {
	if latest == nil {
		return Head{}
	}
	h := latest.Header()
	return Head{Sequence: h.Sequence, Balance: h.BalanceAfter}
}

// NewDelta builds the delta entry that follows head
func NewDelta(head Head, p EntryParams, now time.Time) (*DeltaEntry, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if p.Amount == 0 {
		return nil, shared.ErrInvalidAmount
	}
	e := &DeltaEntry{EntryHeader: newHeader(head, p, now)}
	e.BalanceAfter = e.apply(head.Balance)
	if e.BalanceAfter < 0 {
		return nil, shared.ErrInsufficientBalance
	}
	return e, nil
}

// NewReset builds the reset entry that follows head
func NewReset(head Head, p EntryParams, now time.Time) (*ResetEntry, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, shared.ErrInvalidAmount.WithMessage("Allocation cannot be negative")
	}
	e := &ResetEntry{EntryHeader: newHeader(head, p, now)}
	e.BalanceAfter = e.apply(head.Balance)
	return e, nil
}

// Rehydrate rebuilds an entry of the given kind from stored fields
func Rehydrate(kind EntryKind, h EntryHeader) (Entry, error) {
	switch kind {
	case EntryKindDelta:
		return &DeltaEntry{EntryHeader: h}, nil
	case EntryKindReset:
		return &ResetEntry{EntryHeader: h}, nil
	default:
		return nil, fmt.Errorf("credit: unknown entry kind %q", kind)
	}
}

// Replay recomputes the balance from entries in ascending sequence order and
// checks every stored BalanceAfter against the recomputation.
func Replay(entries []Entry) (int64, error) {
	var balance int64
	var lastSeq int64
	for _, e := range entries {
		h := e.Header()
		if h.Sequence <= lastSeq {
			return 0, ErrLedgerCorrupt.WithMessage(fmt.Sprintf("entry %s out of order (sequence %d after %d)", h.ID, h.Sequence, lastSeq))
		}
		lastSeq = h.Sequence
		balance = e.apply(balance)
		if balance != h.BalanceAfter {
			return 0, ErrLedgerCorrupt.WithMessage(fmt.Sprintf("entry %s stores balance %d, replay gives %d", h.ID, h.BalanceAfter, balance))
		}
		if balance < 0 {
			return 0, ErrLedgerCorrupt.WithMessage(fmt.Sprintf("entry %s leaves a negative balance", h.ID))
		}
	}
	return balance, nil
}

func validateParams(p EntryParams) error {
	if p.TenantID == uuid.Nil {
		return shared.ErrInvalidInput.WithMessage("tenant ID is required")
	}
	if !p.CreditType.IsValid() {
		return ErrInvalidType
	}
	return nil
}

func newHeader(head Head, p EntryParams, now time.Time) EntryHeader {
	return EntryHeader{
		ID:                 uuid.New(),
		TenantID:           p.TenantID,
		CreditType:         p.CreditType,
		Sequence:           head.Sequence + 1,
		Amount:             p.Amount,
		Description:        p.Description,
		ExternalPaymentRef: p.ExternalPaymentRef,
		CreatedAt:          now,
	}
}
