// Package metering defines the transactional boundary shared by the credit
// and pack services.
package metering

import (
	"context"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
)

// UnitOfWork runs fn atomically. If fn returns an error every write made
// through the repositories it received is rolled back.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(tx Repositories) error) error
}

// Repositories are the repositories bound to one unit of work
type Repositories interface {
	Accounts() account.Repository
	Ledger() credit.LedgerRepository
	Packs() pack.Repository
}
