package persistence

import (
	"context"
	"testing"
	"time"

	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// steppingClock returns the times in order and then keeps returning the last
type steppingClock struct {
	times []time.Time
}

func (c *steppingClock) now() time.Time {
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

func newPackService(db *Database, clock shared.Clock) *packapp.Service {
	return packapp.NewService(
		NewGormUnitOfWork(db.DB),
		NewGormPackRepository(db.DB),
		zap.NewNop(),
		packapp.ServiceConfig{Clock: clock},
	)
}

func TestGormPackRepository_CreateAndFind(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormPackRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := pack.NewPack(tenantID, pack.TypeCreator, "pi_123", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))

	found, err := repo.FindByPaymentRef(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, int64(30), found.MinutesTotal)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, found.ExpiresAt.Equal(testNow.AddDate(0, 12, 0)))

	_, err = repo.FindByPaymentRef(ctx, "pi_missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindByPaymentRef(ctx, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormPackRepository_DuplicatePaymentRef(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormPackRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	first, err := pack.NewPack(tenantID, pack.TypeStarter, "cs_1", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	second, err := pack.NewPack(tenantID, pack.TypeStarter, "cs_1", testNow)
	require.NoError(t, err)
	err = repo.Create(ctx, second)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	// packs granted without a payment do not collide on the NULL reference
	for i := 0; i < 2; i++ {
		free, err := pack.NewPack(tenantID, pack.TypeStarter, "", testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, free))
	}
	all, err := repo.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGormPackRepository_FindConsumableExcludesExpiredAndExhausted(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormPackRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	// bought 13 months ago, starter packs expire after 12
	expired, err := pack.NewPack(tenantID, pack.TypeStarter, "", testNow.AddDate(0, -13, 0))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, expired))

	exhausted, err := pack.NewPack(tenantID, pack.TypeStarter, "", testNow.AddDate(0, -1, 0))
	require.NoError(t, err)
	exhausted.MinutesUsed = exhausted.MinutesTotal
	require.NoError(t, repo.Create(ctx, exhausted))

	studio, err := pack.NewPack(tenantID, pack.TypeStudio, "", testNow.AddDate(-3, 0, 0))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, studio))

	consumable, err := repo.FindConsumable(ctx, tenantID, testNow)
	require.NoError(t, err)
	require.Len(t, consumable, 1)
	assert.Equal(t, studio.ID, consumable[0].ID)

	other, err := repo.FindConsumable(ctx, uuid.New(), testNow)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGormPackRepository_SaveMissingPack(t *testing.T) {
	repo := NewGormPackRepository(newTestDatabase(t).DB)

	p, err := pack.NewPack(uuid.New(), pack.TypeStarter, "", testNow)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(context.Background(), p), shared.ErrNotFound)
}

func TestPackService_FIFOAcrossTwoPacks(t *testing.T) {
	db := newTestDatabase(t)
	tenantID := uuid.New()
	clock := &steppingClock{times: []time.Time{
		testNow.Add(-2 * time.Hour), // pack A
		testNow.Add(-1 * time.Hour), // pack B
		testNow,
	}}
	svc := newPackService(db, clock.now)
	ctx := context.Background()

	a, err := svc.PurchasePack(ctx, tenantID, pack.TypeStarter, "pi_a")
	require.NoError(t, err)
	b, err := svc.PurchasePack(ctx, tenantID, pack.TypeCreator, "pi_b")
	require.NoError(t, err)

	result, err := svc.DebitMinutes(ctx, tenantID, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(15), result.Debited)
	assert.Zero(t, result.Shortfall)
	assert.Equal(t, int64(25), result.Remaining)
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, a.Pack.ID, result.Allocations[0].PackID)
	assert.Equal(t, int64(10), result.Allocations[0].Minutes)
	assert.Equal(t, b.Pack.ID, result.Allocations[1].PackID)
	assert.Equal(t, int64(5), result.Allocations[1].Minutes)

	views, err := svc.GetPacks(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, pack.StatusExhausted, views[0].Status)
	assert.Equal(t, int64(10), views[0].MinutesUsed)
	assert.Equal(t, pack.StatusActive, views[1].Status)
	assert.Equal(t, int64(5), views[1].MinutesUsed)

	// the billing account row used as the tenant lock was created on demand
	acct, err := NewGormAccountRepository(db.DB).FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "launch", acct.Tier.String())
}

func TestPackService_StarterPackDrainsToZero(t *testing.T) {
	db := newTestDatabase(t)
	tenantID := uuid.New()
	svc := newPackService(db, func() time.Time { return testNow })
	ctx := context.Background()

	_, err := svc.PurchasePack(ctx, tenantID, pack.TypeStarter, "")
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	result, err := svc.DebitMinutes(ctx, tenantID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Debited)
	assert.Zero(t, result.Remaining)

	balance, err = svc.GetBalance(ctx, tenantID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	result, err = svc.DebitMinutes(ctx, tenantID, 1)
	require.NoError(t, err)
	assert.Zero(t, result.Debited)
	assert.Equal(t, int64(1), result.Shortfall)
}

func TestPackService_DuplicatePaymentReturnsExistingPack(t *testing.T) {
	db := newTestDatabase(t)
	tenantID := uuid.New()
	svc := newPackService(db, func() time.Time { return testNow })
	ctx := context.Background()

	first, err := svc.PurchasePack(ctx, tenantID, pack.TypeStudio, "pi_dup")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := svc.PurchasePack(ctx, tenantID, pack.TypeStudio, "pi_dup")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Pack.ID, again.Pack.ID)

	balance, err := svc.GetBalance(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}
