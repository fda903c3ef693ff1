package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerRepository implements credit.LedgerRepository using GORM.
// It only ever inserts rows.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts the entry. The (tenant, credit type, sequence) unique index
// turns a concurrent append after the same head into ErrConcurrencyConflict.
func (r *GormLedgerRepository) Append(ctx context.Context, entry credit.Entry) error {
	var model models.LedgerEntryModel
	model.FromDomain(entry)
	err := r.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrConcurrencyConflict.WithMessage(
			fmt.Sprintf("ledger %s/%s already has sequence %d", model.TenantID, model.CreditType, model.Sequence))
	}
	return err
}

// Latest returns the newest entry, or nil for an empty ledger
func (r *GormLedgerRepository) Latest(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (credit.Entry, error) {
	var model models.LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credit_type = ?", tenantID, creditType.String()).
		Order("sequence DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain()
}

// LatestAll returns the newest entry of every credit type the tenant has used
func (r *GormLedgerRepository) LatestAll(ctx context.Context, tenantID uuid.UUID) (map[credit.Type]credit.Entry, error) {
	var rows []models.LedgerEntryModel
	err := r.db.WithContext(ctx).Raw(`
		SELECT l.* FROM credit_ledger_entries l
		JOIN (
			SELECT credit_type, MAX(sequence) AS max_sequence
			FROM credit_ledger_entries
			WHERE tenant_id = ?
			GROUP BY credit_type
		) head ON head.credit_type = l.credit_type AND head.max_sequence = l.sequence
		WHERE l.tenant_id = ?`, tenantID, tenantID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[credit.Type]credit.Entry, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		latest[entry.Header().CreditType] = entry
	}
	return latest, nil
}

// List returns entries oldest first. limit <= 0 returns the whole ledger.
func (r *GormLedgerRepository) List(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error) {
	return r.list(ctx, tenantID, creditType, "sequence ASC", limit)
}

// ListRecent returns entries newest first
func (r *GormLedgerRepository) ListRecent(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error) {
	return r.list(ctx, tenantID, creditType, "sequence DESC", limit)
}

func (r *GormLedgerRepository) list(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, order string, limit int) ([]credit.Entry, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credit_type = ?", tenantID, creditType.String()).
		Order(order)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.LedgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]credit.Entry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ExistsByPaymentRef reports whether the ref was already credited to the type
func (r *GormLedgerRepository) ExistsByPaymentRef(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ? AND credit_type = ? AND external_payment_ref = ?", tenantID, creditType.String(), ref).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormLedgerRepository implements credit.LedgerRepository
var _ credit.LedgerRepository = (*GormLedgerRepository)(nil)
