package tier

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
)

// Limits is the per-metric cap of one tier
type Limits map[Metric]int64

// Plan is the static definition of a tier
type Plan struct {
	Tier              Tier
	MonthlyPriceCents int64
	Limits            Limits
}

var plans = map[Tier]Plan{
	TierLaunch: {
		Tier:              TierLaunch,
		MonthlyPriceCents: 4900,
		Limits: Limits{
			MetricVideoStorageSeconds: 10 * 3600,
			MetricStudents:            500,
			MetricEmailsPerMonth:      10000,
			MetricAICourse:            2,
			MetricAIRewrite:           10,
			MetricAIImage:             0,
			MetricAIQuiz:              5,
		},
	},
	TierGrow: {
		Tier:              TierGrow,
		MonthlyPriceCents: 9900,
		Limits: Limits{
			MetricVideoStorageSeconds: 50 * 3600,
			MetricStudents:            2000,
			MetricEmailsPerMonth:      50000,
			MetricAICourse:            10,
			MetricAIRewrite:           30,
			MetricAIImage:             50,
			MetricAIQuiz:              25,
		},
	},
	TierScale: {
		Tier:              TierScale,
		MonthlyPriceCents: 19900,
		Limits: Limits{
			MetricVideoStorageSeconds: 200 * 3600,
			MetricStudents:            10000,
			MetricEmailsPerMonth:      250000,
			MetricAICourse:            50,
			MetricAIRewrite:           150,
			MetricAIImage:             250,
			MetricAIQuiz:              100,
		},
	},
}

// Overage rates in cents per billed unit. Storage is billed per started hour
// and emails per started block of EmailBlockSize.
const (
	StorageRateCentsPerHour int64 = 50
	StudentRateCents        int64 = 10
	EmailBlockRateCents     int64 = 100
	EmailBlockSize          int64 = 1000
	SecondsPerHour          int64 = 3600
)

// PlanFor returns the static plan of a tier
func PlanFor(t Tier) (Plan, error) {
	p, ok := plans[t]
	if !ok {
		return Plan{}, ErrInvalidTier.WithMessage(fmt.Sprintf("unknown tier: %q", t))
	}
	return p, nil
}

// LimitsFor returns a copy of the tier's limits
func LimitsFor(t Tier) (Limits, error) {
	p, err := PlanFor(t)
	if err != nil {
		return nil, err
	}
	out := make(Limits, len(p.Limits))
	for m, v := range p.Limits {
		out[m] = v
	}
	return out, nil
}

// Limit returns the cap of one metric for a tier
func Limit(t Tier, m Metric) (int64, error) {
	p, err := PlanFor(t)
	if err != nil {
		return 0, err
	}
	if !m.IsValid() {
		return 0, ErrInvalidMetric
	}
	return p.Limits[m], nil
}

// MonthlyPriceCents returns the subscription price of a tier
func MonthlyPriceCents(t Tier) (int64, error) {
	p, err := PlanFor(t)
	if err != nil {
		return 0, err
	}
	return p.MonthlyPriceCents, nil
}

// OverageRate returns the cents charged per billed overage unit of a metric.
// AI metrics are covered by credits and have no overage rate.
func OverageRate(m Metric) int64 {
	switch m {
	case MetricVideoStorageSeconds:
		return StorageRateCentsPerHour
	case MetricStudents:
		return StudentRateCents
	case MetricEmailsPerMonth:
		return EmailBlockRateCents
	default:
		return 0
	}
}

// MonthlyAllocation returns the credits a tier receives each month for a credit type
func MonthlyAllocation(t Tier, ct credit.Type) (int64, error) {
	m, ok := MetricForCredit(ct)
	if !ok {
		return 0, credit.ErrInvalidType
	}
	return Limit(t, m)
}

// ActionCheck is the answer to "may the tenant consume one more unit"
type ActionCheck struct {
	Allowed        bool   `json:"allowed"`
	Limit          int64  `json:"limit"`
	CurrentUsage   int64  `json:"current_usage"`
	OverageEnabled bool   `json:"overage_enabled"`
	Reason         string `json:"reason,omitempty"`
}

// CheckCanPerformAction allows the action while usage is below the tier
// limit, or at any usage when overage billing is enabled.
func CheckCanPerformAction(t Tier, m Metric, currentUsage int64, overageEnabled bool) (ActionCheck, error) {
	limit, err := Limit(t, m)
	if err != nil {
		return ActionCheck{}, err
	}

	check := ActionCheck{
		Limit:          limit,
		CurrentUsage:   currentUsage,
		OverageEnabled: overageEnabled,
	}
	switch {
	case currentUsage < limit:
		check.Allowed = true
	case overageEnabled:
		check.Allowed = true
		check.Reason = "limit reached, usage will be billed as overage"
	default:
		check.Reason = fmt.Sprintf("%s limit of %d reached on the %s tier", m, limit, t.DisplayName())
	}
	return check, nil
}
