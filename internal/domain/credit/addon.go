package credit

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
)

// AddonType is a purchasable add-on that multiplies the current AI credit balances
type AddonType string

const (
	AddonBoost     AddonType = "boost"
	AddonUnlimited AddonType = "unlimited"
)

// ErrInvalidAddon is returned for an unknown add-on
var ErrInvalidAddon = shared.NewDomainError("INVALID_ADDON_TYPE", "Unknown add-on type")

// IsValid returns true if the add-on is known
func (a AddonType) IsValid() bool {
	switch a {
	case AddonBoost, AddonUnlimited:
		return true
	}
	return false
}

// Multiplier is the factor applied to every AI balance when the add-on is bought
func (a AddonType) Multiplier() int64 {
	switch a {
	case AddonBoost:
		return 2
	case AddonUnlimited:
		return 10
	default:
		return 1
	}
}

// PriceCents is the one-off price of the add-on
func (a AddonType) PriceCents() int64 {
	switch a {
	case AddonBoost:
		return 2900
	case AddonUnlimited:
		return 9900
	default:
		return 0
	}
}

// BonusFor returns the delta that brings current up to current*multiplier.
// Negative balances never occur, so the bonus is never negative.
func (a AddonType) BonusFor(current int64) int64 {
	if current <= 0 {
		return 0
	}
	return current * (a.Multiplier() - 1)
}

// ParseAddonType parses a string into an AddonType
func ParseAddonType(s string) (AddonType, error) {
	a := AddonType(s)
	if !a.IsValid() {
		return "", ErrInvalidAddon.WithMessage(fmt.Sprintf("unknown add-on type: %q", s))
	}
	return a, nil
}
