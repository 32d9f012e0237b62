package note

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epitrack/internal/core/actorctx"
	"epitrack/internal/core/apperror"
	"epitrack/internal/core/clock"
	"epitrack/internal/core/id"
	"epitrack/internal/core/numerator"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/balance"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// memNoteRepo keeps notes in memory. Reads hand out copies and Update
// persists the copy, so a failed operation leaves the stored note intact
// the way a rolled-back transaction would.
type memNoteRepo struct {
	mu    sync.Mutex
	notes map[id.ID]*Note
}

func newMemNoteRepo() *memNoteRepo {
	return &memNoteRepo{notes: make(map[id.ID]*Note)}
}

func (r *memNoteRepo) clone(n *Note) *Note {
	c := *n
	c.Items = make([]*Item, len(n.Items))
	for i, it := range n.Items {
		itemCopy := *it
		c.Items[i] = &itemCopy
	}
	return &c
}

func (r *memNoteRepo) Create(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[n.ID] = r.clone(n)
	return nil
}

func (r *memNoteRepo) Update(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[n.ID]; !ok {
		return apperror.NewNotFound("note", n.ID.String())
	}
	r.notes[n.ID] = r.clone(n)
	return nil
}

func (r *memNoteRepo) GetByID(ctx context.Context, noteID id.ID) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[noteID]
	if !ok {
		return nil, apperror.NewNotFound("note", noteID.String())
	}
	return r.clone(n), nil
}

func (r *memNoteRepo) GetByIDForUpdate(ctx context.Context, noteID id.ID) (*Note, error) {
	return r.GetByID(ctx, noteID)
}

func (r *memNoteRepo) GetByNumber(ctx context.Context, number string) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if n.Number == number {
			return r.clone(n), nil
		}
	}
	return nil, apperror.NewNotFound("note", number)
}

func (r *memNoteRepo) List(ctx context.Context, filter ListFilter) ([]*Note, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Note
	for _, n := range r.notes {
		out = append(out, r.clone(n))
	}
	return out, int64(len(out)), nil
}

var _ Repository = (*memNoteRepo)(nil)

type noteFixture struct {
	svc      *Service
	ledger   *ledger.Service
	balances *balance.Store
	flags    *settings.InMemory
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()

	flags := settings.NewInMemory()
	balances := balance.NewStore(balance.NewMemoryRepo())
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepo(), balances, flags, logger.Default())

	svc := NewService(
		newMemNoteRepo(),
		ledgerSvc,
		numerator.NewSequential(),
		tx.Nop{},
		flags,
		clock.At(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)),
		logger.Default(),
	)

	return &noteFixture{svc: svc, ledger: ledgerSvc, balances: balances, flags: flags}
}

func (f *noteFixture) ctx() context.Context {
	return actorctx.WithActor(context.Background(), &actorctx.Actor{UserID: "tester"})
}

// seed puts quantity into a warehouse's available row through the ledger.
func (f *noteFixture) seed(t *testing.T, wh, typ id.ID, qty int64) {
	t.Helper()
	_, err := f.ledger.CreateEntry(f.ctx(), ledger.Movement{
		Kind:        ledger.KindEntry,
		WarehouseID: wh,
		EPITypeID:   typ,
		Quantity:    qty,
	})
	require.NoError(t, err)
}

func (f *noteFixture) available(t *testing.T, wh, typ id.ID) int64 {
	t.Helper()
	qty, err := f.balances.Available(f.ctx(), wh, typ)
	require.NoError(t, err)
	return qty
}

func TestCreateDraft_AssignsNumber(t *testing.T) {
	f := newNoteFixture(t)

	n, err := f.svc.CreateDraft(f.ctx(), CreateDraftInput{
		Kind:            KindEntry,
		DestWarehouseID: ptr(id.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, "ENT-2025-000001", n.Number)
	assert.Equal(t, StatusDraft, n.Status)

	n2, err := f.svc.CreateDraft(f.ctx(), CreateDraftInput{
		Kind:            KindEntry,
		DestWarehouseID: ptr(id.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, "ENT-2025-000002", n2.Number)
}

func TestConclude_EntryNote(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, typ := id.New(), id.New()

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindEntry, DestWarehouseID: &wh})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 10, types.Money{})
	require.NoError(t, err)

	n, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusConcluded, n.Status)
	assert.Equal(t, int64(10), n.Items[0].ProcessedQuantity)
	assert.Equal(t, int64(10), f.available(t, wh, typ))

	entries, err := f.ledger.GetByNote(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.KindEntry, entries[0].Kind)

	// A concluded note cannot conclude again.
	_, err = f.svc.Conclude(ctx, n.ID, true)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidNoteState))
}

func TestConclude_TransferNote(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	origin, dest, typ := id.New(), id.New(), id.New()
	f.seed(t, origin, typ, 8)

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{
		Kind:              KindTransfer,
		OriginWarehouseID: &origin,
		DestWarehouseID:   &dest,
	})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 5, types.Money{})
	require.NoError(t, err)

	_, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	assert.Equal(t, int64(3), f.available(t, origin, typ))
	assert.Equal(t, int64(5), f.available(t, dest, typ))

	entries, err := f.ledger.GetByNote(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.KindTransfer, entries[0].Kind)
	assert.Equal(t, ledger.KindEntry, entries[1].Kind)
}

func TestConclude_DisposalInsufficientStock(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	origin, typ := id.New(), id.New()
	f.seed(t, origin, typ, 2)

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindDisposal, OriginWarehouseID: &origin})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 5, types.Money{})
	require.NoError(t, err)

	_, err = f.svc.Conclude(ctx, n.ID, true)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// The failed conclusion left the persisted note in draft.
	n, err = f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, n.Status)
	assert.Equal(t, int64(2), f.available(t, origin, typ))
}

func TestConclude_DisposalWithoutStockValidation(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	origin, typ := id.New(), id.New()
	f.seed(t, origin, typ, 2)

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindDisposal, OriginWarehouseID: &origin})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 5, types.Money{})
	require.NoError(t, err)

	// validateStock false waives the floor for this conclusion only; the
	// global negative-stock flag stays off.
	n, err = f.svc.Conclude(ctx, n.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusConcluded, n.Status)
	assert.Equal(t, int64(-3), f.available(t, origin, typ))
}

func TestConclude_AdjustmentSkipsMatchingCounts(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, matching, differing := id.New(), id.New(), id.New()
	f.seed(t, wh, matching, 4)
	f.seed(t, wh, differing, 4)

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindAdjustment, DestWarehouseID: &wh})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, matching, 4, types.Money{})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, differing, 1, types.Money{})
	require.NoError(t, err)

	n, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	byType := map[id.ID]*Item{}
	for _, it := range n.Items {
		byType[it.EPITypeID] = it
	}
	assert.Equal(t, int64(0), byType[matching].ProcessedQuantity)
	assert.Equal(t, int64(3), byType[differing].ProcessedQuantity)
	assert.Equal(t, int64(4), f.available(t, wh, matching))
	assert.Equal(t, int64(1), f.available(t, wh, differing))
}

func TestCancel_Draft(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindEntry, DestWarehouseID: ptr(id.New())})
	require.NoError(t, err)

	n, err = f.svc.Cancel(ctx, n.ID, "not needed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, n.Status)

	entries, err := f.ledger.GetByNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancel_ConcludedReversesStock(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	origin, dest, typ := id.New(), id.New(), id.New()
	f.seed(t, origin, typ, 10)

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{
		Kind:              KindTransfer,
		OriginWarehouseID: &origin,
		DestWarehouseID:   &dest,
	})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 6, types.Money{})
	require.NoError(t, err)
	_, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	n, err = f.svc.Cancel(ctx, n.ID, "wrong warehouse")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, n.Status)

	assert.Equal(t, int64(10), f.available(t, origin, typ))
	assert.Equal(t, int64(0), f.available(t, dest, typ))

	entries, err := f.ledger.GetByNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestCancel_BlockedByPriorReversal(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, typ := id.New(), id.New()

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindEntry, DestWarehouseID: &wh})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 3, types.Money{})
	require.NoError(t, err)
	_, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	// Someone reverses the entry directly.
	entries, err := f.ledger.GetByNote(ctx, n.ID)
	require.NoError(t, err)
	_, err = f.ledger.CreateReversal(ctx, entries[0].ID, "manual estorno")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, n.ID, "cleanup")
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotCancel))

	n, err = f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConcluded, n.Status)
}

func TestCancel_ConcludedWithoutEntries(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, typ := id.New(), id.New()
	f.seed(t, wh, typ, 4)

	// An adjustment note whose only count matches the balance concludes
	// without writing any ledger entries.
	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindAdjustment, DestWarehouseID: &wh})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 4, types.Money{})
	require.NoError(t, err)
	_, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	// With nothing to reverse there is no stock to restore, so the
	// cancellation is refused instead of silently flipping the status.
	_, err = f.svc.Cancel(ctx, n.ID, "cleanup")
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotCancel))

	n, err = f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConcluded, n.Status)

	impact, err := f.svc.PreviewCancellation(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, impact.Cancelable)
	assert.NotEmpty(t, impact.Reason)
}

func TestPreviewCancellation(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, typ := id.New(), id.New()

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindEntry, DestWarehouseID: &wh})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, n.ID, typ, 5, types.Money{})
	require.NoError(t, err)

	impact, err := f.svc.PreviewCancellation(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, impact.Cancelable)
	assert.Empty(t, impact.Changes)

	_, err = f.svc.Conclude(ctx, n.ID, true)
	require.NoError(t, err)

	impact, err = f.svc.PreviewCancellation(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, impact.Cancelable)
	require.Len(t, impact.Changes, 1)
	assert.Equal(t, int64(-5), impact.Changes[0].Delta)

	// Preview changed nothing.
	assert.Equal(t, int64(5), f.available(t, wh, typ))
}

func TestDraftItemEditingThroughService(t *testing.T) {
	f := newNoteFixture(t)
	ctx := f.ctx()
	wh, typ := id.New(), id.New()

	n, err := f.svc.CreateDraft(ctx, CreateDraftInput{Kind: KindEntry, DestWarehouseID: &wh})
	require.NoError(t, err)

	n, err = f.svc.AddItem(ctx, n.ID, typ, 5, types.Money{})
	require.NoError(t, err)
	require.Len(t, n.Items, 1)

	n, err = f.svc.UpdateItemQuantity(ctx, n.ID, n.Items[0].ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.Items[0].Quantity)

	n, err = f.svc.RemoveItem(ctx, n.ID, n.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, n.Items)
}
