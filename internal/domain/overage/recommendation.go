package overage

import (
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/shopspring/decimal"
)

// UpgradeThresholdRatio is the share of the monthly price difference that
// estimated overage must exceed before an upgrade is suggested
var UpgradeThresholdRatio = decimal.NewFromFloat(0.5)

// Recommendation is the upgrade advice for a tenant
type Recommendation struct {
	ShouldRecommend       bool      `json:"should_recommend"`
	CurrentTier           tier.Tier `json:"current_tier"`
	RecommendedTier       tier.Tier `json:"recommended_tier,omitempty"`
	EstimatedOverageCents int64     `json:"estimated_overage_cents"`
	PriceDeltaCents       int64     `json:"price_delta_cents"`
	ThresholdCents        string    `json:"threshold_cents"`
	Reason                string    `json:"reason,omitempty"`
}

// Recommend suggests the next tier when the estimated overage on the
// current tier is more than half the price difference to the next tier.
// The top tier never receives a recommendation.
func Recommend(current tier.Tier, usage Usage) (Recommendation, error) {
	charges, err := Compute(current, usage)
	if err != nil {
		return Recommendation{}, err
	}
	return RecommendFromEstimate(current, TotalCents(charges))
}

// RecommendFromEstimate applies the upgrade threshold to an already computed estimate
func RecommendFromEstimate(current tier.Tier, estimatedOverageCents int64) (Recommendation, error) {
	rec := Recommendation{
		CurrentTier:           current,
		EstimatedOverageCents: estimatedOverageCents,
		ThresholdCents:        "0",
	}

	next, ok := current.Next()
	if !ok {
		if !current.IsValid() {
			return Recommendation{}, tier.ErrInvalidTier
		}
		rec.Reason = "already on the highest tier"
		return rec, nil
	}
	if estimatedOverageCents <= 0 {
		rec.Reason = "no overage this period"
		return rec, nil
	}

	currentPrice, err := tier.MonthlyPriceCents(current)
	if err != nil {
		return Recommendation{}, err
	}
	nextPrice, err := tier.MonthlyPriceCents(next)
	if err != nil {
		return Recommendation{}, err
	}

	rec.PriceDeltaCents = nextPrice - currentPrice
	threshold := decimal.NewFromInt(rec.PriceDeltaCents).Mul(UpgradeThresholdRatio)
	rec.ThresholdCents = threshold.String()

	if decimal.NewFromInt(estimatedOverageCents).GreaterThan(threshold) {
		rec.ShouldRecommend = true
		rec.RecommendedTier = next
		rec.Reason = "estimated overage exceeds half the price difference to " + next.DisplayName()
		return rec, nil
	}
	rec.Reason = "overage below upgrade threshold"
	return rec, nil
}
