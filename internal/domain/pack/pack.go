package pack

import (
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a pack. It is derived, never stored.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExhausted Status = "EXHAUSTED"
	StatusExpired   Status = "EXPIRED"
)

// IsTerminal returns true for states a pack never leaves
func (s Status) IsTerminal() bool {
	return s == StatusExhausted || s == StatusExpired
}

// ErrPackTerminal is returned when minutes are taken from an exhausted or expired pack
var ErrPackTerminal = shared.NewDomainError("PACK_TERMINAL", "Pack is exhausted or expired")

// Pack is a pre-paid bundle of rendering minutes owned by one tenant
type Pack struct {
	shared.BaseEntity
	TenantID           uuid.UUID
	PackType           Type
	MinutesTotal       int64
	MinutesUsed        int64
	PurchasedAt        time.Time
	ExpiresAt          *time.Time
	ExternalPaymentRef string
}

// NewPack sizes a pack from the catalog and stamps its expiry
func NewPack(tenantID uuid.UUID, packType Type, externalPaymentRef string, now time.Time) (*Pack, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("tenant ID is required")
	}
	def, err := packType.Definition()
	if err != nil {
		return nil, err
	}

	p := &Pack{
		BaseEntity:         shared.NewBaseEntityAt(now),
		TenantID:           tenantID,
		PackType:           packType,
		MinutesTotal:       def.Minutes,
		PurchasedAt:        now,
		ExternalPaymentRef: externalPaymentRef,
	}
	if def.ValidityMonths > 0 {
		expires := now.AddDate(0, def.ValidityMonths, 0)
		p.ExpiresAt = &expires
	}
	return p, nil
}

// Available is the number of unused minutes, ignoring expiry
func (p *Pack) Available() int64 {
	return p.MinutesTotal - p.MinutesUsed
}

// IsExpired reports whether the pack's expiry is at or before now
func (p *Pack) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// Status evaluates the pack state at now. Exhaustion wins over expiry.
func (p *Pack) Status(now time.Time) Status {
	switch {
	case p.Available() <= 0:
		return StatusExhausted
	case p.IsExpired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Consumable returns the minutes that can still be taken at now
func (p *Pack) Consumable(now time.Time) int64 {
	if p.Status(now) != StatusActive {
		return 0
	}
	return p.Available()
}

// Consume takes minutes from an active pack
func (p *Pack) Consume(minutes int64, now time.Time) error {
	if minutes <= 0 {
		return shared.ErrInvalidAmount
	}
	if p.Status(now).IsTerminal() {
		return ErrPackTerminal
	}
	if minutes > p.Available() {
		return shared.ErrInsufficientBalance.WithMessage(
			fmt.Sprintf("pack %s has %d minutes left, %d requested", p.ID, p.Available(), minutes))
	}
	p.MinutesUsed += minutes
	p.Touch(now)
	return nil
}
