package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPackRepository implements pack.Repository using GORM
type GormPackRepository struct {
	db *gorm.DB
}

// NewGormPackRepository creates a new GormPackRepository
func NewGormPackRepository(db *gorm.DB) *GormPackRepository {
	return &GormPackRepository{db: db}
}

// Create inserts a new pack
func (r *GormPackRepository) Create(ctx context.Context, p *pack.Pack) error {
	var model models.PackModel
	model.FromDomain(p)
	err := r.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists.WithMessage("a pack already exists for this payment")
	}
	return err
}

// Save persists the consumed minutes of an existing pack
func (r *GormPackRepository) Save(ctx context.Context, p *pack.Pack) error {
	result := r.db.WithContext(ctx).Model(&models.PackModel{}).
		Where("id = ? AND minutes_total >= ?", p.ID, p.MinutesUsed).
		Updates(map[string]interface{}{
			"minutes_used": p.MinutesUsed,
			"updated_at":   p.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByTenant returns every pack of the tenant, oldest purchase first
func (r *GormPackRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*pack.Pack, error) {
	var rows []models.PackModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("purchased_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPacks(rows), nil
}

// FindConsumable returns packs with unused minutes that have not expired at now
func (r *GormPackRepository) FindConsumable(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*pack.Pack, error) {
	return r.findConsumable(r.db.WithContext(ctx), tenantID, now)
}

// FindConsumableForUpdate is FindConsumable with the rows locked until the transaction ends
func (r *GormPackRepository) FindConsumableForUpdate(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*pack.Pack, error) {
	return r.findConsumable(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, now)
}

func (r *GormPackRepository) findConsumable(db *gorm.DB, tenantID uuid.UUID, now time.Time) ([]*pack.Pack, error) {
	var rows []models.PackModel
	err := db.
		Where("tenant_id = ?", tenantID).
		Where("minutes_total - minutes_used > 0").
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Order("purchased_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPacks(rows), nil
}

// FindByPaymentRef returns the pack created for a payment or shared.ErrNotFound
func (r *GormPackRepository) FindByPaymentRef(ctx context.Context, ref string) (*pack.Pack, error) {
	if ref == "" {
		return nil, shared.ErrNotFound
	}
	var model models.PackModel
	err := r.db.WithContext(ctx).Where("external_payment_ref = ?", ref).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func toPacks(rows []models.PackModel) []*pack.Pack {
	packs := make([]*pack.Pack, len(rows))
	for i := range rows {
		packs[i] = rows[i].ToDomain()
	}
	return packs
}

// Ensure GormPackRepository implements pack.Repository
var _ pack.Repository = (*GormPackRepository)(nil)
