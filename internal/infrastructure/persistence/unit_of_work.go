package persistence

import (
	"context"

	"github.com/audithero/apostle-video-platform-sub004/internal/application/metering"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/account"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"gorm.io/gorm"
)

// GormUnitOfWork implements metering.UnitOfWork using GORM transactions.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn within a database transaction. The transaction is rolled
// back if fn returns an error and committed otherwise.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(tx metering.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{tx: tx})
	})
}

// gormRepositories provides the repositories bound to one transaction.
type gormRepositories struct {
	tx *gorm.DB
}

func (r *gormRepositories) Accounts() account.Repository {
	return NewGormAccountRepository(r.tx)
}

func (r *gormRepositories) Ledger() credit.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormRepositories) Packs() pack.Repository {
	return NewGormPackRepository(r.tx)
}

// Ensure GormUnitOfWork implements metering.UnitOfWork
var _ metering.UnitOfWork = (*GormUnitOfWork)(nil)

// Ensure gormRepositories implements metering.Repositories
var _ metering.Repositories = (*gormRepositories)(nil)
