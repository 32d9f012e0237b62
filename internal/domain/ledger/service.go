package ledger

import (
	"context"

	"epitrack/internal/core/actorctx"
	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/domain/balance"
	"epitrack/pkg/logger"
)

// Service records ledger entries and keeps balance rows consistent with
// them. Every write locks the affected balance row, derives balance-before
// from the locked row, appends the entry and updates the row inside the
// caller's transaction, so the entry chain and the materialized balance can
// never diverge.
type Service struct {
	repo     Repository
	balances *balance.Store
	settings settings.Provider
	log      *logger.Logger
}

// NewService creates a ledger service.
func NewService(repo Repository, balances *balance.Store, settings settings.Provider, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		balances: balances,
		settings: settings,
		log:      log,
	}
}

// Movement describes one quantity change to record.
type Movement struct {
	Kind        Kind
	WarehouseID id.ID
	EPITypeID   id.ID
	Status      balance.ItemStatus
	Quantity    int64

	OriginNoteID    *id.ID
	OriginEntregaID *id.ID
	Notes           string

	// SkipStockCheck waives the insufficient-stock floor for this movement
	// only. Callers expose it as an explicit per-operation override; the
	// global negative-stock flag is consulted when it is false.
	SkipStockCheck bool
}

// CreateEntry records one movement. Must be called inside a transaction.
//
// The affected balance row is locked first and its quantity becomes the
// entry's balance-before, so concurrent movements on the same row serialize
// and each entry sees the true prior balance. Consuming kinds fail with an
// insufficient-stock error when the row would go negative, unless the
// negative-stock override is active.
func (s *Service) CreateEntry(ctx context.Context, m Movement) (*Entry, error) {
	status := m.Status
	if status == "" {
		status = balance.StatusAvailable
	}
	if !status.Valid() {
		return nil, apperror.NewValidation("unknown item status").WithDetail("itemStatus", string(status))
	}

	b, err := s.balances.GetLocked(ctx, m.WarehouseID, m.EPITypeID, status)
	if err != nil {
		return nil, err
	}

	e, err := newEntry(m.Kind, m.WarehouseID, m.EPITypeID, m.Quantity, b.Quantity, actorctx.GetUserID(ctx))
	if err != nil {
		return nil, err
	}
	e.Status = status
	e.OriginNoteID = m.OriginNoteID
	e.OriginEntregaID = m.OriginEntregaID
	e.Notes = m.Notes

	return s.commit(ctx, e, m.SkipStockCheck)
}

// CreateUnitEntries records count single-unit movements of m's kind against
// one balance row. Must be called inside a transaction. The row is locked
// once, the entries chain balance-before to the previous balance-after, and
// the batch is persisted with a single bulk insert, so issuing many units
// costs one lock and one round trip instead of count of each. m.Quantity is
// ignored; every entry moves exactly one unit.
func (s *Service) CreateUnitEntries(ctx context.Context, m Movement, count int64) ([]*Entry, error) {
	if count <= 0 {
		return nil, apperror.NewValidation("unit count must be positive").WithDetail("count", count)
	}
	status := m.Status
	if status == "" {
		status = balance.StatusAvailable
	}
	if !status.Valid() {
		return nil, apperror.NewValidation("unknown item status").WithDetail("itemStatus", string(status))
	}

	b, err := s.balances.GetLocked(ctx, m.WarehouseID, m.EPITypeID, status)
	if err != nil {
		return nil, err
	}

	actor := actorctx.GetUserID(ctx)
	entries := make([]*Entry, 0, count)
	running := b.Quantity
	for i := int64(0); i < count; i++ {
		e, err := newEntry(m.Kind, m.WarehouseID, m.EPITypeID, 1, running, actor)
		if err != nil {
			return nil, err
		}
		e.Status = status
		e.OriginNoteID = m.OriginNoteID
		e.OriginEntregaID = m.OriginEntregaID
		e.Notes = m.Notes
		if err := e.Validate(ctx); err != nil {
			return nil, err
		}
		entries = append(entries, e)
		running = e.BalanceAfter
	}

	// All entries share one kind, so the running balance is monotone and
	// checking the final value covers every intermediate one.
	if running < 0 && !m.SkipStockCheck && !s.settings.AllowNegativeStock(ctx) {
		return nil, apperror.NewInsufficientStock(m.EPITypeID.String(), count, b.Quantity)
	}

	if err := s.repo.CreateBatch(ctx, entries); err != nil {
		return nil, err
	}
	if _, err := s.balances.Set(ctx, m.WarehouseID, m.EPITypeID, status, running); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "ledger entries recorded",
		"kind", string(m.Kind),
		"warehouse_id", m.WarehouseID.String(),
		"epi_type_id", m.EPITypeID.String(),
		"units", count,
		"balance_after", running,
	)
	return entries, nil
}

// CreateAdjustment records an adjustment targeting an absolute quantity.
// Must be called inside a transaction. Fails with a nothing-to-adjust
// business error when the locked quantity already matches target.
func (s *Service) CreateAdjustment(ctx context.Context, warehouseID, epiTypeID id.ID, target int64, originNoteID *id.ID, notes string) (*Entry, error) {
	b, err := s.balances.GetLocked(ctx, warehouseID, epiTypeID, balance.StatusAvailable)
	if err != nil {
		return nil, err
	}

	e, err := newAdjustmentEntry(warehouseID, epiTypeID, b.Quantity, target, actorctx.GetUserID(ctx))
	if err != nil {
		return nil, err
	}
	e.OriginNoteID = originNoteID
	e.Notes = notes

	return s.commit(ctx, e, false)
}

// CreateReversal records the compensating entry for entryID. Must be
// called inside a transaction. An entry can be reversed at most once, and
// reversal entries themselves can never be reversed.
func (s *Service) CreateReversal(ctx context.Context, entryID id.ID, notes string) (*Entry, error) {
	original, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if !original.Reversible() {
		return nil, apperror.NewBusinessRule(apperror.CodeCannotReverse, "A reversal entry cannot itself be reversed").
			WithDetail("entry_id", entryID.String())
	}

	reversed, err := s.repo.HasReversal(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, apperror.NewBusinessRule(apperror.CodeCannotReverse, "Entry has already been reversed").
			WithDetail("entry_id", entryID.String())
	}

	b, err := s.balances.GetLocked(ctx, original.WarehouseID, original.EPITypeID, original.Status)
	if err != nil {
		return nil, err
	}

	e, err := newReversalEntry(original, b.Quantity, actorctx.GetUserID(ctx), notes)
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, e, false)
}

// GetByID retrieves one entry.
func (s *Service) GetByID(ctx context.Context, entryID id.ID) (*Entry, error) {
	return s.repo.GetByID(ctx, entryID)
}

// GetByNote retrieves the entries a movement note produced, in order.
func (s *Service) GetByNote(ctx context.Context, noteID id.ID) ([]*Entry, error) {
	return s.repo.GetByNote(ctx, noteID)
}

// GetByEntrega retrieves the entries an issuance produced.
func (s *Service) GetByEntrega(ctx context.Context, entregaID id.ID) ([]*Entry, error) {
	return s.repo.GetByEntrega(ctx, entregaID)
}

// History returns the kardex for a (warehouse, EPI type) pair.
func (s *Service) History(ctx context.Context, warehouseID, epiTypeID id.ID, filter HistoryFilter) ([]*Entry, error) {
	return s.repo.History(ctx, warehouseID, epiTypeID, filter)
}

// commit validates the entry, checks the floor, persists the entry and
// brings the balance row in line with balance-after.
func (s *Service) commit(ctx context.Context, e *Entry, skipStockCheck bool) (*Entry, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	if e.BalanceAfter < 0 && !skipStockCheck && !s.settings.AllowNegativeStock(ctx) {
		return nil, apperror.NewInsufficientStock(e.EPITypeID.String(), e.Quantity, e.BalanceBefore)
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	if _, err := s.balances.Set(ctx, e.WarehouseID, e.EPITypeID, e.Status, e.BalanceAfter); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "ledger entry recorded",
		"entry_id", e.ID.String(),
		"kind", string(e.Kind),
		"warehouse_id", e.WarehouseID.String(),
		"epi_type_id", e.EPITypeID.String(),
		"quantity", e.Quantity,
		"balance_after", e.BalanceAfter,
	)

	return e, nil
}
