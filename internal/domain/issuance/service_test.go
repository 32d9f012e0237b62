package issuance

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
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// memEntregaRepo hands out copies so a failed operation leaves the stored
// delivery intact the way a rolled-back transaction would.
type memEntregaRepo struct {
	mu    sync.Mutex
	order []id.ID
	byID  map[id.ID]*Entrega
}

func newMemEntregaRepo() *memEntregaRepo {
	return &memEntregaRepo{byID: make(map[id.ID]*Entrega)}
}

func cloneEntrega(e *Entrega) *Entrega {
	c := *e
	if e.SignedAt != nil {
		at := *e.SignedAt
		c.SignedAt = &at
	}
	if e.CancelledAt != nil {
		at := *e.CancelledAt
		c.CancelledAt = &at
	}
	c.Items = make([]*Item, len(e.Items))
	for i, it := range e.Items {
		ic := *it
		c.Items[i] = &ic
	}
	return &c
}

func (r *memEntregaRepo) Create(ctx context.Context, e *Entrega) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, e.ID)
	r.byID[e.ID] = cloneEntrega(e)
	return nil
}

func (r *memEntregaRepo) Update(ctx context.Context, e *Entrega) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; !ok {
		return apperror.NewNotFound("delivery", e.ID.String())
	}
	r.byID[e.ID] = cloneEntrega(e)
	return nil
}

func (r *memEntregaRepo) GetByID(ctx context.Context, entregaID id.ID) (*Entrega, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[entregaID]
	if !ok {
		return nil, apperror.NewNotFound("delivery", entregaID.String())
	}
	return cloneEntrega(e), nil
}

func (r *memEntregaRepo) GetByIDForUpdate(ctx context.Context, entregaID id.ID) (*Entrega, error) {
	return r.GetByID(ctx, entregaID)
}

func (r *memEntregaRepo) List(ctx context.Context, filter ListFilter) ([]*Entrega, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entrega
	for _, eid := range r.order {
		e := r.byID[eid]
		if filter.FichaID != nil && e.FichaID != *filter.FichaID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, cloneEntrega(e))
	}
	return out, int64(len(out)), nil
}

func (r *memEntregaRepo) CountOpenItems(ctx context.Context, fichaID id.ID) (int64, error) {
	open, err := r.ListOpenItemsByFicha(ctx, fichaID)
	return int64(len(open)), err
}

func (r *memEntregaRepo) ListOpenItemsByFicha(ctx context.Context, fichaID id.ID) ([]*OpenItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OpenItem
	for _, eid := range r.order {
		e := r.byID[eid]
		if e.FichaID != fichaID || e.Status == StatusCancelled {
			continue
		}
		c := cloneEntrega(e)
		for _, it := range c.Items {
			if it.State == StateWithEmployee {
				out = append(out, &OpenItem{Item: it, Entrega: c})
			}
		}
	}
	return out, nil
}

type memFichaRepo struct {
	byID map[id.ID]*ficha.Ficha
}

func (r *memFichaRepo) Create(ctx context.Context, f *ficha.Ficha) error {
	r.byID[f.ID] = f
	return nil
}

func (r *memFichaRepo) Update(ctx context.Context, f *ficha.Ficha) error {
	r.byID[f.ID] = f
	return nil
}

func (r *memFichaRepo) GetByID(ctx context.Context, fichaID id.ID) (*ficha.Ficha, error) {
	f, ok := r.byID[fichaID]
	if !ok {
		return nil, apperror.NewNotFound("PPE record", fichaID.String())
	}
	return f, nil
}

func (r *memFichaRepo) GetByRegistration(ctx context.Context, registration string) (*ficha.Ficha, error) {
	for _, f := range r.byID {
		if f.EmployeeRegistration == registration {
			return f, nil
		}
	}
	return nil, apperror.NewNotFound("PPE record", registration)
}

func (r *memFichaRepo) List(ctx context.Context, filter ficha.ListFilter) ([]*ficha.Ficha, int64, error) {
	var out []*ficha.Ficha
	for _, f := range r.byID {
		out = append(out, f)
	}
	return out, int64(len(out)), nil
}

type memTypeRepo struct {
	byID map[id.ID]*epitype.EPIType
}

func (r *memTypeRepo) Create(ctx context.Context, t *epitype.EPIType) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTypeRepo) Update(ctx context.Context, t *epitype.EPIType) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTypeRepo) GetByID(ctx context.Context, epiTypeID id.ID) (*epitype.EPIType, error) {
	t, ok := r.byID[epiTypeID]
	if !ok {
		return nil, apperror.NewNotFound("EPI type", epiTypeID.String())
	}
	return t, nil
}

func (r *memTypeRepo) GetByCANumber(ctx context.Context, caNumber string) (*epitype.EPIType, error) {
	for _, t := range r.byID {
		if t.CANumber == caNumber {
			return t, nil
		}
	}
	return nil, apperror.NewNotFound("EPI type", caNumber)
}

func (r *memTypeRepo) GetByIDs(ctx context.Context, epiTypeIDs []id.ID) ([]*epitype.EPIType, error) {
	var out []*epitype.EPIType
	for _, typeID := range epiTypeIDs {
		if t, ok := r.byID[typeID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTypeRepo) List(ctx context.Context, filter epitype.ListFilter) ([]*epitype.EPIType, error) {
	var out []*epitype.EPIType
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out, nil
}

var issuedAt = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type issueFixture struct {
	svc      *Service
	repo     *memEntregaRepo
	ledger   *ledger.MemoryRepo
	balances *balance.Store
	fichas   *memFichaRepo
	types    *memTypeRepo

	ficha  *ficha.Ficha
	helmet *epitype.EPIType
	gloves *epitype.EPIType
}

func newIssueFixture(t *testing.T) *issueFixture {
	t.Helper()

	flags := settings.NewInMemory()
	ledgerRepo := ledger.NewMemoryRepo()
	balances := balance.NewStore(balance.NewMemoryRepo())
	ledgerSvc := ledger.NewService(ledgerRepo, balances, flags, logger.Default())

	f := &issueFixture{
		repo:     newMemEntregaRepo(),
		ledger:   ledgerRepo,
		balances: balances,
		fichas:   &memFichaRepo{byID: make(map[id.ID]*ficha.Ficha)},
		types:    &memTypeRepo{byID: make(map[id.ID]*epitype.EPIType)},
	}
	f.svc = NewService(f.repo, f.fichas, f.types, ledgerSvc, numerator.NewSequential(), tx.Nop{}, clock.At(issuedAt), logger.Default())

	f.ficha = ficha.New("Maria Silva", "EMP-001", "Manutenção", "Eletricista")
	require.NoError(t, f.fichas.Create(context.Background(), f.ficha))

	f.helmet = epitype.New("Capacete classe B", "CA-12345", 90, 10, types.Money{})
	f.gloves = epitype.New("Luva de vaqueta", "", 0, 0, types.Money{})
	require.NoError(t, f.types.Create(context.Background(), f.helmet))
	require.NoError(t, f.types.Create(context.Background(), f.gloves))

	return f
}

func issueContext() context.Context {
	return actorctx.WithActor(context.Background(), &actorctx.Actor{UserID: "tester"})
}

// seed stocks the warehouse through the ledger so balances and history agree.
func (f *issueFixture) seed(t *testing.T, ctx context.Context, warehouseID, epiTypeID id.ID, qty int64) {
	t.Helper()
	_, err := f.svc.ledger.CreateEntry(ctx, ledger.Movement{
		Kind:        ledger.KindEntry,
		WarehouseID: warehouseID,
		EPITypeID:   epiTypeID,
		Quantity:    qty,
	})
	require.NoError(t, err)
}

func (f *issueFixture) available(t *testing.T, ctx context.Context, warehouseID, epiTypeID id.ID) int64 {
	t.Helper()
	qty, err := f.balances.Available(ctx, warehouseID, epiTypeID)
	require.NoError(t, err)
	return qty
}

func TestIssue(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)
	f.seed(t, ctx, wh, f.gloves.ID, 5)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines: []IssueLine{
			{EPITypeID: f.helmet.ID, Quantity: 2},
			{EPITypeID: f.gloves.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "EPI-2025-000001", e.Number)
	assert.Equal(t, StatusPendingSignature, e.Status)
	require.Len(t, e.Items, 3, "lines expand to one row per unit")

	wantDeadline := issuedAt.AddDate(0, 0, 90)
	for _, it := range e.Items[:2] {
		assert.Equal(t, f.helmet.ID, it.EPITypeID)
		require.NotNil(t, it.ReturnDeadline)
		assert.Equal(t, wantDeadline, *it.ReturnDeadline)
	}
	assert.Nil(t, e.Items[2].ReturnDeadline, "no expiry means no deadline")

	assert.Equal(t, int64(8), f.available(t, ctx, wh, f.helmet.ID))
	assert.Equal(t, int64(4), f.available(t, ctx, wh, f.gloves.ID))

	entries, err := f.svc.ledger.GetByEntrega(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3, "one exit per unit")
	for _, entry := range entries {
		assert.Equal(t, ledger.KindExit, entry.Kind)
		assert.Equal(t, int64(1), entry.Quantity)
	}
}

func TestIssue_UnitEntriesChainBalances(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Len(t, e.Items, 3)

	// Three units leave as three single-unit exits whose balances chain
	// 10 -> 9 -> 8 -> 7, matching what three sequential movements would
	// have written.
	entries, err := f.svc.ledger.GetByEntrega(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	before := int64(10)
	for _, entry := range entries {
		assert.Equal(t, ledger.KindExit, entry.Kind)
		assert.Equal(t, int64(1), entry.Quantity)
		assert.Equal(t, before, entry.BalanceBefore)
		assert.Equal(t, before-1, entry.BalanceAfter)
		before--
	}
	assert.Equal(t, int64(7), f.available(t, ctx, wh, f.helmet.ID))
}

func TestIssue_Validation(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()

	_, err := f.svc.Issue(ctx, IssueInput{FichaID: f.ficha.ID, WarehouseID: id.New()})
	assert.Error(t, err, "no lines")

	_, err = f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: id.New(),
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 0}},
	})
	assert.Error(t, err, "zero quantity")
}

func TestIssue_RecordNotActive(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	require.NoError(t, f.ficha.Suspend())

	_, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: id.New(),
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeRecordNotActive))
	assert.Equal(t, 0, f.ledger.Len())
}

func TestIssue_InactiveType(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	f.helmet.Active = false

	_, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: id.New(),
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestIssue_UnknownType(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Issue(issueContext(), IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: id.New(),
		Lines:       []IssueLine{{EPITypeID: id.New(), Quantity: 1}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}

func TestIssue_InsufficientStock(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 1)

	_, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 2}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	assert.Equal(t, int64(1), f.available(t, ctx, wh, f.helmet.ID))
	_, total, err := f.repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "nothing persisted")
}

func TestSignDelivery(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 5)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	signed, err := f.svc.Sign(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, signed.Status)
	require.NotNil(t, signed.SignedAt)
	assert.Equal(t, issuedAt, *signed.SignedAt)

	_, err = f.svc.Sign(ctx, e.ID)
	assert.Error(t, err, "already signed")
}

func TestCancelDelivery(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)
	f.seed(t, ctx, wh, f.gloves.ID, 5)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines: []IssueLine{
			{EPITypeID: f.helmet.ID, Quantity: 3},
			{EPITypeID: f.gloves.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.available(t, ctx, wh, f.helmet.ID))

	cancelled, err := f.svc.Cancel(ctx, e.ID, "issued to the wrong employee")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// Stock is back where it started.
	assert.Equal(t, int64(10), f.available(t, ctx, wh, f.helmet.ID))
	assert.Equal(t, int64(5), f.available(t, ctx, wh, f.gloves.ID))

	// Five unit exits plus their five reversals, all on the delivery's trail.
	entries, err := f.svc.ledger.GetByEntrega(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestCancelDelivery_OnlyUnsigned(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 5)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, e.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, e.ID, "too late")
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotCancel))
	assert.Equal(t, int64(4), f.available(t, ctx, wh, f.helmet.ID))
}

// issueAndSign is the common setup for return tests: one signed delivery of
// qty helmet units from a warehouse stocked with 10.
func issueAndSign(t *testing.T, f *issueFixture, ctx context.Context, qty int64) (id.ID, *Entrega) {
	t.Helper()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	e, err = f.svc.Sign(ctx, e.ID)
	require.NoError(t, err)
	return wh, e
}

func TestProcessReturn_Usable(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh, e := issueAndSign(t, f, ctx, 1)

	got, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items: []ReturnItem{
			{ItemID: e.Items[0].ID, Classification: ReturnUsable, Notes: "returned at shift end"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFullyReturned, got.Status)
	item := got.Items[0]
	assert.Equal(t, StateReturned, item.State)
	require.NotNil(t, item.ReturnedAt)
	assert.Equal(t, "returned at shift end", item.ReturnNotes)

	// Usable units land in quarantine, not back in available stock.
	assert.Equal(t, int64(9), f.available(t, ctx, wh, f.helmet.ID))
	q, err := f.balances.Get(ctx, wh, f.helmet.ID, balance.StatusQuarantine)
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.Quantity)
}

func TestProcessReturn_Damaged(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh, e := issueAndSign(t, f, ctx, 1)

	got, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[0].ID, Classification: ReturnDamaged}},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDamaged, got.Items[0].State)
	d, err := f.balances.Get(ctx, wh, f.helmet.ID, balance.StatusDiscarded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Quantity)
}

func TestProcessReturn_Lost(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh, e := issueAndSign(t, f, ctx, 1)
	before := f.ledger.Len()

	got, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[0].ID, Classification: ReturnLost}},
	})
	require.NoError(t, err)

	assert.Equal(t, StateLost, got.Items[0].State)
	assert.Equal(t, StatusFullyReturned, got.Status)
	assert.Equal(t, before, f.ledger.Len(), "lost units move no stock")
	assert.Equal(t, int64(9), f.available(t, ctx, wh, f.helmet.ID))
}

func TestProcessReturn_PartialStatus(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	_, e := issueAndSign(t, f, ctx, 2)

	got, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[0].ID, Classification: ReturnUsable}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyReturned, got.Status)

	got, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[1].ID, Classification: ReturnUsable}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFullyReturned, got.Status)
}

func TestProcessReturn_MixedBatch(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh, e := issueAndSign(t, f, ctx, 3)

	// Two usable units and one lost unit come back as a single return; the
	// aggregate status is recomputed once, after the whole batch.
	got, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items: []ReturnItem{
			{ItemID: e.Items[0].ID, Classification: ReturnUsable},
			{ItemID: e.Items[1].ID, Classification: ReturnUsable},
			{ItemID: e.Items[2].ID, Classification: ReturnLost},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFullyReturned, got.Status)
	assert.Equal(t, StateReturned, got.Items[0].State)
	assert.Equal(t, StateReturned, got.Items[1].State)
	assert.Equal(t, StateLost, got.Items[2].State)

	q, err := f.balances.Get(ctx, wh, f.helmet.ID, balance.StatusQuarantine)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.Quantity)
	assert.Equal(t, int64(7), f.available(t, ctx, wh, f.helmet.ID), "lost unit moves no stock")
}

func TestProcessReturn_BatchRollsBackWhole(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	_, e := issueAndSign(t, f, ctx, 2)

	// The second item is unknown, so the whole batch fails and the first
	// unit stays with the employee.
	_, err := f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items: []ReturnItem{
			{ItemID: e.Items[0].ID, Classification: ReturnUsable},
			{ItemID: id.New(), Classification: ReturnUsable},
		},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	stored, err := f.svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, stored.Status)
	assert.Equal(t, StateWithEmployee, stored.Items[0].State)
}

func TestProcessReturn_Rejections(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)

	_, err := f.svc.ProcessReturn(ctx, ReturnInput{EntregaID: id.New()})
	assert.Error(t, err, "no items")

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: id.New(),
		Items:     []ReturnItem{{ItemID: id.New(), Classification: ReturnClassification("shrunk")}},
	})
	assert.Error(t, err, "unknown classification")

	pending, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: pending.ID,
		Items:     []ReturnItem{{ItemID: pending.Items[0].ID, Classification: ReturnUsable}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule), "unsigned delivery")

	cancelled, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines:       []IssueLine{{EPITypeID: f.helmet.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, cancelled.ID, "mistake")
	require.NoError(t, err)

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: cancelled.ID,
		Items:     []ReturnItem{{ItemID: cancelled.Items[0].ID, Classification: ReturnUsable}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule), "cancelled delivery")

	_, signed := issueAndSign(t, f, ctx, 1)
	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: signed.ID,
		Items:     []ReturnItem{{ItemID: signed.Items[0].ID, Classification: ReturnLost}},
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: signed.ID,
		Items:     []ReturnItem{{ItemID: signed.Items[0].ID, Classification: ReturnUsable}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule), "unit already closed")
}

func TestCountOpenItems(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	_, e := issueAndSign(t, f, ctx, 3)

	count, err := f.svc.CountOpenItems(ctx, f.ficha.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[0].ID, Classification: ReturnUsable}},
	})
	require.NoError(t, err)

	count, err = f.svc.CountOpenItems(ctx, f.ficha.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCurrentPossession(t *testing.T) {
	f := newIssueFixture(t)
	ctx := issueContext()
	wh := id.New()
	f.seed(t, ctx, wh, f.helmet.ID, 10)
	f.seed(t, ctx, wh, f.gloves.ID, 5)

	e, err := f.svc.Issue(ctx, IssueInput{
		FichaID:     f.ficha.ID,
		WarehouseID: wh,
		Lines: []IssueLine{
			{EPITypeID: f.helmet.ID, Quantity: 3},
			{EPITypeID: f.gloves.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	e, err = f.svc.Sign(ctx, e.ID)
	require.NoError(t, err)

	// Backdate two helmet deadlines: one past due, one inside the
	// 10-day warning window. The third helmet unit is returned and must
	// not show up at all.
	overdue := issuedAt.AddDate(0, 0, -1)
	nearExpiry := issuedAt.AddDate(0, 0, 5)
	e.Items[0].ReturnDeadline = &overdue
	e.Items[1].ReturnDeadline = &nearExpiry
	require.NoError(t, f.repo.Update(ctx, e))

	_, err = f.svc.ProcessReturn(ctx, ReturnInput{
		EntregaID: e.ID,
		Items:     []ReturnItem{{ItemID: e.Items[2].ID, Classification: ReturnUsable}},
	})
	require.NoError(t, err)

	groups, err := f.svc.CurrentPossession(ctx, f.ficha.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	helmets := groups[0]
	assert.Equal(t, f.helmet.ID, helmets.EPITypeID)
	assert.Equal(t, 2, helmets.Total)
	assert.Equal(t, 1, helmets.Overdue)
	require.Len(t, helmets.Units, 2)
	assert.Equal(t, PossessionOverdue, helmets.Units[0].State)
	assert.Equal(t, PossessionNearExpiry, helmets.Units[1].State)
	assert.Equal(t, e.Number, helmets.Units[0].EntregaNumber)

	gloves := groups[1]
	assert.Equal(t, f.gloves.ID, gloves.EPITypeID)
	assert.Equal(t, 1, gloves.Total)
	assert.Equal(t, 0, gloves.Overdue)
	assert.Equal(t, PossessionActive, gloves.Units[0].State, "no deadline stays active")
}

func TestCurrentPossession_Empty(t *testing.T) {
	f := newIssueFixture(t)

	groups, err := f.svc.CurrentPossession(issueContext(), f.ficha.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
