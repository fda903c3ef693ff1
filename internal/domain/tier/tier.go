package tier

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
)

// Tier is a subscription plan level. Tiers are totally ordered.
type Tier string

const (
	TierLaunch Tier = "launch"
	TierGrow   Tier = "grow"
	TierScale  Tier = "scale"
)

// ErrInvalidTier is returned for an unknown tier
var ErrInvalidTier = shared.NewDomainError("INVALID_TIER", "Unknown subscription tier")

// All returns every tier from lowest to highest
func All() []Tier {
	return []Tier{TierLaunch, TierGrow, TierScale}
}

// String returns the string representation of Tier
func (t Tier) String() string {
	return string(t)
}

// IsValid returns true if the tier is known
func (t Tier) IsValid() bool {
	switch t {
	case TierLaunch, TierGrow, TierScale:
		return true
	}
	return false
}

// DisplayName returns a human-readable name
func (t Tier) DisplayName() string {
	switch t {
	case TierLaunch:
		return "Launch"
	case TierGrow:
		return "Grow"
	case TierScale:
		return "Scale"
	default:
		return string(t)
	}
}

// Rank orders tiers; higher is a larger plan. Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierLaunch:
		return 0
	case TierGrow:
		return 1
	case TierScale:
		return 2
	default:
		return -1
	}
}

// Next returns the tier above t. ok is false for the top tier.
func (t Tier) Next() (next Tier, ok bool) {
	switch t {
	case TierLaunch:
		return TierGrow, true
	case TierGrow:
		return TierScale, true
	default:
		return "", false
	}
}

// IsTop reports whether t is the highest tier
func (t Tier) IsTop() bool {
	_, ok := t.Next()
	return t.IsValid() && !ok
}

// Parse parses a string into a Tier
func Parse(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", ErrInvalidTier.WithMessage(fmt.Sprintf("unknown tier: %q", s))
	}
	return t, nil
}
