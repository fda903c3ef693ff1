package pack

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Allocation is the number of minutes taken from one pack
type Allocation struct {
	PackID  uuid.UUID `json:"pack_id"`
	Minutes int64     `json:"minutes"`
}

// Plan is the outcome of a FIFO selection. Shortfall > 0 is not an error:
// the caller decides whether a partial debit is acceptable.
type Plan struct {
	Requested   int64
	Debited     int64
	Shortfall   int64
	Allocations []Allocation
}

// PlanFIFO selects minutes from the oldest purchased consumable packs first.
// Packs that are exhausted or expired at now are skipped.
func PlanFIFO(packs []*Pack, minutes int64, now time.Time) Plan {
	candidates := make([]*Pack, 0, len(packs))
	for _, p := range packs {
		if p.Consumable(now) > 0 {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PurchasedAt.Before(candidates[j].PurchasedAt)
	})

	plan := Plan{Requested: minutes, Allocations: make([]Allocation, 0)}
	remaining := minutes
	for _, p := range candidates {
		if remaining <= 0 {
			break
		}
		take := min(remaining, p.Consumable(now))
		plan.Allocations = append(plan.Allocations, Allocation{PackID: p.ID, Minutes: take})
		plan.Debited += take
		remaining -= take
	}
	plan.Shortfall = max(remaining, 0)
	return plan
}

// ApplyPlan consumes the planned minutes from packs and returns the packs it changed
func ApplyPlan(packs []*Pack, plan Plan, now time.Time) ([]*Pack, error) {
	byID := make(map[uuid.UUID]*Pack, len(packs))
	for _, p := range packs {
		byID[p.ID] = p
	}

	changed := make([]*Pack, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		p, ok := byID[a.PackID]
		if !ok {
			return nil, ErrPackTerminal.WithMessage("planned pack is no longer available")
		}
		if err := p.Consume(a.Minutes, now); err != nil {
			return nil, err
		}
		changed = append(changed, p)
	}
	return changed, nil
}

// TotalConsumable sums the minutes still usable across packs at now
func TotalConsumable(packs []*Pack, now time.Time) int64 {
	var total int64
	for _, p := range packs {
		total += p.Consumable(now)
	}
	return total
}
