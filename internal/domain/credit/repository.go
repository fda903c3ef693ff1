package credit

import (
	"context"

	"github.com/google/uuid"
)

// LedgerRepository is the append-only store of credit ledger entries.
// Entries are never updated or deleted.
type LedgerRepository interface {
	// Append persists a new entry. A sequence that already exists for the
	// (tenant, credit type) pair fails with shared.ErrConcurrencyConflict.
	Append(ctx context.Context, entry Entry) error

	// Latest returns the entry with the highest sequence, or nil when the ledger is empty
	Latest(ctx context.Context, tenantID uuid.UUID, creditType Type) (Entry, error)

	// LatestAll returns the latest entry of every credit type that has one
	LatestAll(ctx context.Context, tenantID uuid.UUID) (map[Type]Entry, error)

	// List returns entries in ascending sequence order. limit <= 0 means all.
	List(ctx context.Context, tenantID uuid.UUID, creditType Type, limit int) ([]Entry, error)

	// ListRecent returns the newest entries first
	ListRecent(ctx context.Context, tenantID uuid.UUID, creditType Type, limit int) ([]Entry, error)

	// ExistsByPaymentRef reports whether an entry with the external payment
	// reference was already written for the credit type
	ExistsByPaymentRef(ctx context.Context, tenantID uuid.UUID, creditType Type, ref string) (bool, error)
}
