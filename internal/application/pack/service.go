// Package pack implements purchase and FIFO consumption of pre-paid minute packs.
package pack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/application/metering"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DebitResult is the outcome of a minute debit. Debited < Requested means
// the packs could not cover the request; the uncovered part is not charged.
type DebitResult struct {
	Requested   int64             `json:"requested"`
	Debited     int64             `json:"debited"`
	Shortfall   int64             `json:"shortfall"`
	Remaining   int64             `json:"remaining"`
	Allocations []pack.Allocation `json:"allocations"`
}

// PurchaseResult is the pack created for a purchase. Duplicate is true when
// the payment reference had already been fulfilled and the earlier pack is returned.
type PurchaseResult struct {
	Pack      *pack.Pack
	Duplicate bool
}

// PackView is a pack with its status evaluated at read time
type PackView struct {
	ID           uuid.UUID   `json:"id"`
	PackType     pack.Type   `json:"pack_type"`
	MinutesTotal int64       `json:"minutes_total"`
	MinutesUsed  int64       `json:"minutes_used"`
	Available    int64       `json:"available"`
	Status       pack.Status `json:"status"`
	PurchasedAt  time.Time   `json:"purchased_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

// CheckoutSession is a hosted payment page for a pack purchase
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutRequest describes a one-off payment for a pack
type CheckoutRequest struct {
	TenantID    uuid.UUID
	PackType    pack.Type
	Name        string
	AmountCents int64
	SuccessURL  string
	CancelURL   string
}

// CheckoutGateway creates hosted checkout sessions at the payment processor
type CheckoutGateway interface {
	CreatePackCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Service handles pack purchase and consumption
type Service struct {
	uow      metering.UnitOfWork
	packs    pack.Repository
	checkout CheckoutGateway
	metrics  *telemetry.MeteringMetrics
	clock    shared.Clock
	logger   *zap.Logger

	successURL string
	cancelURL  string
}

// ServiceConfig contains optional collaborators of Service
type ServiceConfig struct {
	Checkout   CheckoutGateway
	SuccessURL string
	CancelURL  string
	Metrics    *telemetry.MeteringMetrics
	Clock      shared.Clock
}

// NewService creates a pack Service. packs serves reads outside a unit of work.
func NewService(uow metering.UnitOfWork, packs pack.Repository, logger *zap.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{
		uow:        uow,
		packs:      packs,
		checkout:   cfg.Checkout,
		metrics:    cfg.Metrics,
		clock:      clock,
		logger:     logger,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// PurchasePack creates a pack sized from the catalog. A non-empty
// externalPaymentRef that already produced a pack returns that pack.
func (s *Service) PurchasePack(ctx context.Context, tenantID uuid.UUID, packType pack.Type, externalPaymentRef string) (*PurchaseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pack", "purchase")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrPackType, packType)

	if externalPaymentRef != "" {
		existing, err := s.packs.FindByPaymentRef(ctx, externalPaymentRef)
		switch {
		case err == nil:
			return s.duplicate(existing, tenantID, externalPaymentRef)
		case !errors.Is(err, shared.ErrNotFound):
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("look up pack by payment reference: %w", err)
		}
	}

	p, err := pack.NewPack(tenantID, packType, externalPaymentRef, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.packs.Create(ctx, p); err != nil {
		// a concurrent fulfilment of the same payment won the insert
		if errors.Is(err, shared.ErrAlreadyExists) && externalPaymentRef != "" {
			existing, findErr := s.packs.FindByPaymentRef(ctx, externalPaymentRef)
			if findErr == nil {
				return s.duplicate(existing, tenantID, externalPaymentRef)
			}
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create pack: %w", err)
	}

	s.logger.Info("Pack purchased",
		zap.String("tenant_id", tenantID.String()),
		zap.String("pack_id", p.ID.String()),
		zap.String("pack_type", packType.String()),
		zap.Int64("minutes", p.MinutesTotal),
	)
	return &PurchaseResult{Pack: p}, nil
}

func (s *Service) duplicate(existing *pack.Pack, tenantID uuid.UUID, ref string) (*PurchaseResult, error) {
	if existing.TenantID != tenantID {
		return nil, shared.ErrAlreadyExists.WithMessage("payment reference belongs to another tenant")
	}
	s.logger.Info("Pack already fulfilled for payment reference",
		zap.String("tenant_id", tenantID.String()),
		zap.String("pack_id", existing.ID.String()),
		zap.String("external_ref", ref),
	)
	return &PurchaseResult{Pack: existing, Duplicate: true}, nil
}

// DebitMinutes takes minutes from the tenant's packs, oldest purchase first,
// all in one unit of work. A shortfall is reported, not returned as an error.
func (s *Service) DebitMinutes(ctx context.Context, tenantID uuid.UUID, minutes int64) (*DebitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pack", "debit_minutes")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrMinutes, minutes)

	if minutes <= 0 {
		return nil, shared.ErrInvalidAmount
	}

	var result DebitResult
	err := s.uow.Execute(ctx, func(tx metering.Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, tenantID); err != nil {
			return fmt.Errorf("lock billing account: %w", err)
		}
		now := s.clock()
		packs, err := tx.Packs().FindConsumableForUpdate(ctx, tenantID, now)
		if err != nil {
			return fmt.Errorf("select consumable packs: %w", err)
		}

		plan := pack.PlanFIFO(packs, minutes, now)
		changed, err := pack.ApplyPlan(packs, plan, now)
		if err != nil {
			return err
		}
		for _, p := range changed {
			if err := tx.Packs().Save(ctx, p); err != nil {
				return fmt.Errorf("update pack %s: %w", p.ID, err)
			}
		}

		result = DebitResult{
			Requested:   plan.Requested,
			Debited:     plan.Debited,
			Shortfall:   plan.Shortfall,
			Remaining:   pack.TotalConsumable(packs, now),
			Allocations: plan.Allocations,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordPackDebit(ctx, result.Debited, result.Shortfall)
	if result.Shortfall > 0 {
		s.logger.Warn("Pack minutes short of request",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("requested", result.Requested),
			zap.Int64("debited", result.Debited),
		)
	}
	telemetry.SetAttributes(span, "debited", result.Debited, "remaining", result.Remaining)
	return &result, nil
}

// GetBalance returns the unused, unexpired minutes of the tenant
func (s *Service) GetBalance(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	now := s.clock()
	packs, err := s.packs.FindConsumable(ctx, tenantID, now)
	if err != nil {
		return 0, fmt.Errorf("list consumable packs: %w", err)
	}
	return pack.TotalConsumable(packs, now), nil
}

// GetPacks returns every pack of the tenant, including exhausted and expired ones
func (s *Service) GetPacks(ctx context.Context, tenantID uuid.UUID) ([]PackView, error) {
	packs, err := s.packs.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	now := s.clock()
	views := make([]PackView, 0, len(packs))
	for _, p := range packs {
		views = append(views, PackView{
			ID:           p.ID,
			PackType:     p.PackType,
			MinutesTotal: p.MinutesTotal,
			MinutesUsed:  p.MinutesUsed,
			Available:    p.Available(),
			Status:       p.Status(now),
			PurchasedAt:  p.PurchasedAt,
			ExpiresAt:    p.ExpiresAt,
		})
	}
	return views, nil
}

// CreateCheckout opens a hosted payment page for a pack. The pack is created
// by the webhook once the payment completes.
func (s *Service) CreateCheckout(ctx context.Context, tenantID uuid.UUID, packType pack.Type) (*CheckoutSession, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pack", "create_checkout")
	defer span.End()

	if s.checkout == nil {
		return nil, shared.ErrInvalidState.WithMessage("payment processor is not configured")
	}
	def, err := packType.Definition()
	if err != nil {
		return nil, err
	}

	session, err := s.checkout.CreatePackCheckout(ctx, CheckoutRequest{
		TenantID:    tenantID,
		PackType:    packType,
		Name:        fmt.Sprintf("%d minute pack (%s)", def.Minutes, packType),
		AmountCents: def.PriceCents,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return session, nil
}
