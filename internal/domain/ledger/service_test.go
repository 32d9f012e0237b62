package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epitrack/internal/core/actorctx"
	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/domain/balance"
	"epitrack/pkg/logger"
)

func testContext() context.Context {
	return actorctx.WithActor(context.Background(), &actorctx.Actor{UserID: "tester"})
}

func newTestService(flags *settings.InMemory) (*Service, *MemoryRepo, *balance.Store) {
	repo := NewMemoryRepo()
	store := balance.NewStore(balance.NewMemoryRepo())
	return NewService(repo, store, flags, logger.Default()), repo, store
}

func TestCreateEntry_UpdatesBalance(t *testing.T) {
	svc, repo, store := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	e, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindEntry,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.BalanceBefore)
	assert.Equal(t, int64(10), e.BalanceAfter)
	assert.Equal(t, "tester", e.ActorUserID)
	assert.Equal(t, balance.StatusAvailable, e.Status)

	e, err = svc.CreateEntry(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), e.BalanceBefore)
	assert.Equal(t, int64(6), e.BalanceAfter)

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(6), qty)
	assert.Equal(t, 2, repo.Len())
}

func TestCreateEntry_InsufficientStock(t *testing.T) {
	svc, repo, _ := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	_, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    1,
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, 0, repo.Len())
}

func TestCreateEntry_NegativeStockOverride(t *testing.T) {
	flags := settings.NewInMemory()
	flags.SetFlag(settings.FlagAllowNegativeStock, true)
	svc, _, store := newTestService(flags)
	ctx := testContext()
	wh, typ := id.New(), id.New()

	e, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), e.BalanceAfter)

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), qty)
}

func TestCreateUnitEntries(t *testing.T) {
	svc, repo, store := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	_, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindEntry,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    10,
	})
	require.NoError(t, err)

	entries, err := svc.CreateUnitEntries(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
	}, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	before := int64(10)
	for _, e := range entries {
		assert.Equal(t, KindExit, e.Kind)
		assert.Equal(t, int64(1), e.Quantity)
		assert.Equal(t, before, e.BalanceBefore)
		assert.Equal(t, before-1, e.BalanceAfter)
		assert.Equal(t, "tester", e.ActorUserID)
		before--
	}

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(7), qty)
	assert.Equal(t, 4, repo.Len())
}

func TestCreateUnitEntries_InsufficientStock(t *testing.T) {
	svc, repo, _ := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	_, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindEntry,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    2,
	})
	require.NoError(t, err)

	_, err = svc.CreateUnitEntries(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
	}, 3)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, 1, repo.Len(), "nothing from the batch persisted")

	_, err = svc.CreateUnitEntries(ctx, Movement{
		Kind:        KindExit,
		WarehouseID: wh,
		EPITypeID:   typ,
	}, 0)
	assert.Error(t, err, "zero count")
}

func TestMovement_SkipStockCheck(t *testing.T) {
	svc, _, store := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	// The per-movement override lets one write cross the floor while the
	// global negative-stock flag stays off.
	e, err := svc.CreateEntry(ctx, Movement{
		Kind:           KindDisposal,
		WarehouseID:    wh,
		EPITypeID:      typ,
		Quantity:       2,
		SkipStockCheck: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), e.BalanceAfter)

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), qty)

	// Without the override the same movement is still refused.
	_, err = svc.CreateEntry(ctx, Movement{
		Kind:        KindDisposal,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    1,
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestCreateEntry_UnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(settings.NewInMemory())

	_, err := svc.CreateEntry(testContext(), Movement{
		Kind:        KindEntry,
		WarehouseID: id.New(),
		EPITypeID:   id.New(),
		Status:      "melted",
		Quantity:    1,
	})
	require.Error(t, err)
}

func TestCreateAdjustment(t *testing.T) {
	svc, _, store := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	e, err := svc.CreateAdjustment(ctx, wh, typ, 12, nil, "count")
	require.NoError(t, err)
	assert.Equal(t, KindAdjustment, e.Kind)
	assert.Equal(t, int64(12), e.BalanceAfter)

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(12), qty)

	_, err = svc.CreateAdjustment(ctx, wh, typ, 12, nil, "count again")
	assert.True(t, apperror.IsCode(err, apperror.CodeNothingToAdjust))
}

func TestCreateReversal(t *testing.T) {
	svc, _, store := newTestService(settings.NewInMemory())
	ctx := testContext()
	wh, typ := id.New(), id.New()

	original, err := svc.CreateEntry(ctx, Movement{
		Kind:        KindEntry,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    5,
	})
	require.NoError(t, err)

	rev, err := svc.CreateReversal(ctx, original.ID, "estorno")
	require.NoError(t, err)
	assert.Equal(t, KindReversal, rev.Kind)
	assert.Equal(t, int64(0), rev.BalanceAfter)

	qty, err := store.Available(ctx, wh, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(0), qty)

	// Reversing twice is refused.
	_, err = svc.CreateReversal(ctx, original.ID, "again")
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotReverse))

	// Reversal entries themselves can never be reversed.
	_, err = svc.CreateReversal(ctx, rev.ID, "")
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotReverse))
}
