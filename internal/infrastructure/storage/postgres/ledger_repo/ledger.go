// Package ledger_repo provides the PostgreSQL implementation of the
// stock-movement ledger repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/infrastructure/storage/postgres"
)

const entriesTable = "ledger_entries"

var entryColumns = []string{
	"id", "warehouse_id", "epi_type_id", "item_status",
	"kind", "quantity", "balance_before", "balance_after",
	"origin_note_id", "origin_entrega_id", "reversal_of_entry_id",
	"actor_user_id", "notes", "created_at",
}

// Repo implements ledger.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// New creates a ledger repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func entryValues(e *ledger.Entry) []any {
	return []any{
		e.ID, e.WarehouseID, e.EPITypeID, e.Status,
		e.Kind, e.Quantity, e.BalanceBefore, e.BalanceAfter,
		e.OriginNoteID, e.OriginEntregaID, e.ReversalOfEntryID,
		e.ActorUserID, e.Notes, e.CreatedAt,
	}
}

// Create appends one entry.
func (r *Repo) Create(ctx context.Context, e *ledger.Entry) error {
	q := r.builder.Insert(entriesTable).
		Columns(entryColumns...).
		Values(entryValues(e)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// CreateBatch appends entries using COPY when inside a transaction.
func (r *Repo) CreateBatch(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, entryValues(e))
		}
		if _, err := postgres.CopyRows(ctx, r.txManager, entriesTable, entryColumns, rows); err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range entries {
		q = q.Values(entryValues(e)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}
	return nil
}

// GetByID retrieves an entry.
func (r *Repo) GetByID(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", entryID.String())
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

// GetByNote retrieves all entries a note produced, in creation order.
func (r *Repo) GetByNote(ctx context.Context, noteID id.ID) ([]*ledger.Entry, error) {
	return r.selectEntries(ctx, squirrel.Eq{"origin_note_id": noteID})
}

// GetByEntrega retrieves all entries a delivery produced.
func (r *Repo) GetByEntrega(ctx context.Context, entregaID id.ID) ([]*ledger.Entry, error) {
	return r.selectEntries(ctx, squirrel.Eq{"origin_entrega_id": entregaID})
}

func (r *Repo) selectEntries(ctx context.Context, where squirrel.Eq) ([]*ledger.Entry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(where).
		OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return entries, nil
}

// HasReversal reports whether a reversal already points at entryID.
func (r *Repo) HasReversal(ctx context.Context, entryID id.ID) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE reversal_of_entry_id = $1)`

	var exists bool
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, entryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reversal: %w", err)
	}
	return exists, nil
}

// History returns the kardex for a (warehouse, EPI type) pair.
func (r *Repo) History(ctx context.Context, warehouseID, epiTypeID id.ID, filter ledger.HistoryFilter) ([]*ledger.Entry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{
			"warehouse_id": warehouseID,
			"epi_type_id":  epiTypeID,
		})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"item_status": *filter.Status})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return entries, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*Repo)(nil)
