package pack

import (
	"errors"
	"testing"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 9, 0, 0, 0, time.UTC)
}

func newTestPack(t *testing.T, total int64, purchased time.Time, expires *time.Time) *Pack {
	t.Helper()
	return &Pack{
		BaseEntity:   shared.NewBaseEntityAt(purchased),
		TenantID:     uuid.New(),
		PackType:     TypeStarter,
		MinutesTotal: total,
		PurchasedAt:  purchased,
		ExpiresAt:    expires,
	}
}

func TestNewPack(t *testing.T) {
	tenantID := uuid.New()

	t.Run("starter is sized from the catalog", func(t *testing.T) {
		p, err := NewPack(tenantID, TypeStarter, "pi_1", day(1))
		require.NoError(t, err)
		assert.Equal(t, int64(10), p.MinutesTotal)
		assert.Equal(t, int64(0), p.MinutesUsed)
		require.NotNil(t, p.ExpiresAt)
		assert.Equal(t, day(1).AddDate(1, 0, 0), *p.ExpiresAt)
		assert.Equal(t, StatusActive, p.Status(day(2)))
	})

	t.Run("studio never expires", func(t *testing.T) {
		p, err := NewPack(tenantID, TypeStudio, "pi_2", day(1))
		require.NoError(t, err)
		assert.Nil(t, p.ExpiresAt)
		assert.Equal(t, int64(100), p.MinutesTotal)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewPack(tenantID, "mega", "pi_3", day(1))
		assert.True(t, errors.Is(err, ErrInvalidType))
	})
}

func TestPackStatus(t *testing.T) {
	expires := day(10)

	tests := []struct {
		name string
		used int64
		at   time.Time
		want Status
	}{
		{name: "active before expiry", used: 3, at: day(9), want: StatusActive},
		{name: "expired at expiry instant", used: 3, at: day(10), want: StatusExpired},
		{name: "exhausted", used: 20, at: day(9), want: StatusExhausted},
		{name: "exhausted wins over expired", used: 20, at: day(11), want: StatusExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPack(t, 20, day(1), &expires)
			p.MinutesUsed = tt.used
			assert.Equal(t, tt.want, p.Status(tt.at))
		})
	}
}

func TestPackConsume(t *testing.T) {
	expires := day(10)
	p := newTestPack(t, 20, day(1), &expires)

	require.NoError(t, p.Consume(20, day(2)))
	assert.Equal(t, StatusExhausted, p.Status(day(2)))

	err := p.Consume(1, day(2))
	assert.True(t, errors.Is(err, ErrPackTerminal))

	expired := newTestPack(t, 20, day(1), &expires)
	err = expired.Consume(1, day(11))
	assert.True(t, errors.Is(err, ErrPackTerminal))

	fresh := newTestPack(t, 5, day(1), nil)
	err = fresh.Consume(6, day(2))
	assert.True(t, errors.Is(err, shared.ErrInsufficientBalance))
	assert.Equal(t, int64(0), fresh.MinutesUsed)
}

// ============================================================================
// FIFO planning
// ============================================================================

func TestPlanFIFO_OldestFirst(t *testing.T) {
	expiresB := day(10)
	packA := newTestPack(t, 10, day(1), nil)
	packB := newTestPack(t, 20, day(5), &expiresB)

	// Input order must not matter
	packs := []*Pack{packB, packA}

	plan := PlanFIFO(packs, 15, day(6))

	assert.Equal(t, int64(15), plan.Requested)
	assert.Equal(t, int64(15), plan.Debited)
	assert.Equal(t, int64(0), plan.Shortfall)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, Allocation{PackID: packA.ID, Minutes: 10}, plan.Allocations[0])
	assert.Equal(t, Allocation{PackID: packB.ID, Minutes: 5}, plan.Allocations[1])

	changed, err := ApplyPlan(packs, plan, day(6))
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.Equal(t, StatusExhausted, packA.Status(day(6)))
	assert.Equal(t, int64(10), packA.MinutesUsed)
	assert.Equal(t, int64(5), packB.MinutesUsed)
	assert.Equal(t, int64(15), TotalConsumable(packs, day(6)))
}

func TestPlanFIFO_SkipsExpiredPacks(t *testing.T) {
	expiresB := day(10)
	packA := newTestPack(t, 10, day(1), nil)
	packA.MinutesUsed = 10
	packB := newTestPack(t, 20, day(5), &expiresB)
	packB.MinutesUsed = 5

	plan := PlanFIFO([]*Pack{packA, packB}, 3, day(11))

	assert.Equal(t, int64(0), plan.Debited)
	assert.Equal(t, int64(3), plan.Shortfall)
	assert.Empty(t, plan.Allocations)
	assert.Equal(t, int64(0), TotalConsumable([]*Pack{packA, packB}, day(11)))
}

func TestPlanFIFO_PartialShortfall(t *testing.T) {
	p := newTestPack(t, 10, day(1), nil)

	plan := PlanFIFO([]*Pack{p}, 25, day(2))

	assert.Equal(t, int64(10), plan.Debited)
	assert.Equal(t, int64(15), plan.Shortfall)
}

func TestApplyPlan_UnknownPack(t *testing.T) {
	p := newTestPack(t, 10, day(1), nil)
	plan := Plan{Requested: 1, Debited: 1, Allocations: []Allocation{{PackID: uuid.New(), Minutes: 1}}}

	_, err := ApplyPlan([]*Pack{p}, plan, day(2))
	assert.True(t, errors.Is(err, ErrPackTerminal))
}
