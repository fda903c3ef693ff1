package overage

import (
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
)

// Charge is the billable overage of one metric. It is derived on every
// call and never stored.
type Charge struct {
	Metric       tier.Metric `json:"metric"`
	Usage        int64       `json:"usage"`
	Limit        int64       `json:"limit"`
	OverageUnits int64       `json:"overage_units"`
	RateCents    int64       `json:"rate_cents"`
	TotalCents   int64       `json:"total_cents"`
}

// BillableUnits converts raw overage of a metric into billed units:
// started hours for storage, started blocks of 1,000 for emails and one
// unit per student.
func BillableUnits(m tier.Metric, rawOverage int64) int64 {
	if rawOverage <= 0 {
		return 0
	}
	switch m {
	case tier.MetricVideoStorageSeconds:
		return ceilDiv(rawOverage, tier.SecondsPerHour)
	case tier.MetricEmailsPerMonth:
		return ceilDiv(rawOverage, tier.EmailBlockSize)
	case tier.MetricStudents:
		return rawOverage
	default:
		return 0
	}
}

// Compute returns a charge for every billable metric whose usage exceeds
// the tier limit. Metrics without overage are omitted.
func Compute(t tier.Tier, usage Usage) ([]Charge, error) {
	limits, err := tier.LimitsFor(t)
	if err != nil {
		return nil, err
	}

	charges := make([]Charge, 0, len(tier.BillableMetrics()))
	for _, m := range tier.BillableMetrics() {
		used := usage.Of(m)
		units := BillableUnits(m, used-limits[m])
		if units <= 0 {
			continue
		}
		rate := tier.OverageRate(m)
		charges = append(charges, Charge{
			Metric:       m,
			Usage:        used,
			Limit:        limits[m],
			OverageUnits: units,
			RateCents:    rate,
			TotalCents:   units * rate,
		})
	}
	return charges, nil
}

// TotalCents sums the charges
func TotalCents(charges []Charge) int64 {
	var total int64
	for _, c := range charges {
		total += c.TotalCents
	}
	return total
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
