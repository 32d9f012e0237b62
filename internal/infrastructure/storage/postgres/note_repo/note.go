// Package note_repo provides the PostgreSQL implementation of the
// movement-note repository.
package note_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/note"
	"epitrack/internal/infrastructure/storage/postgres"
)

const (
	notesTable     = "movement_notes"
	noteItemsTable = "movement_note_items"
)

var noteColumns = []string{
	"id", "version", "number", "kind", "status",
	"origin_warehouse_id", "dest_warehouse_id",
	"issue_date", "notes", "concluded_at", "cancelled_at", "cancel_reason",
	"created_at", "updated_at", "created_by", "updated_by",
}

var itemColumns = []string{
	"id", "note_id", "epi_type_id", "quantity", "unit_cost", "processed_quantity",
}

// Repo implements note.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// New creates a note repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new note with its items.
func (r *Repo) Create(ctx context.Context, n *note.Note) error {
	q := r.builder.Insert(notesTable).
		Columns(noteColumns...).
		Values(
			n.ID, n.Version, n.Number, n.Kind, n.Status,
			n.OriginWarehouseID, n.DestWarehouseID,
			n.IssueDate, n.Notes, n.ConcludedAt, n.CancelledAt, n.CancelReason,
			n.CreatedAt, n.UpdatedAt, n.CreatedBy, n.UpdatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	return r.insertItems(ctx, n.Items)
}

// Update persists the note with optimistic locking and replaces its items.
// The caller's Touch() has already advanced the version; the previous
// version guards the update.
func (r *Repo) Update(ctx context.Context, n *note.Note) error {
	currentVersion := n.Version - 1

	q := r.builder.Update(notesTable).
		Set("version", n.Version).
		Set("status", n.Status).
		Set("notes", n.Notes).
		Set("concluded_at", n.ConcludedAt).
		Set("cancelled_at", n.CancelledAt).
		Set("cancel_reason", n.CancelReason).
		Set("updated_at", n.UpdatedAt).
		Set("updated_by", n.UpdatedBy).
		Where(squirrel.Eq{
			"id":      n.ID,
			"version": currentVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("movement note", n.ID.String())
	}

	// Replace items as a set, in one round-trip. Safe because items only
	// change while draft.
	delSQL, delArgs, err := r.builder.Delete(noteItemsTable).
		Where(squirrel.Eq{"note_id": n.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete items: %w", err)
	}

	queries := []postgres.BatchQuery{{SQL: delSQL, Args: delArgs}}
	if len(n.Items) > 0 {
		insSQL, insArgs, err := r.itemsInsert(n.Items).ToSql()
		if err != nil {
			return fmt.Errorf("build insert items: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: insSQL, Args: insArgs})
	}

	return postgres.ExecBatch(ctx, r.txManager, queries)
}

func (r *Repo) itemsInsert(items []*note.Item) squirrel.InsertBuilder {
	q := r.builder.Insert(noteItemsTable).Columns(itemColumns...)
	for _, it := range items {
		q = q.Values(it.ID, it.NoteID, it.EPITypeID, it.Quantity, it.UnitCost, it.ProcessedQuantity)
	}
	return q
}

func (r *Repo) insertItems(ctx context.Context, items []*note.Item) error {
	if len(items) == 0 {
		return nil
	}

	sql, args, err := r.itemsInsert(items).ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// GetByID retrieves a note with its items.
func (r *Repo) GetByID(ctx context.Context, noteID id.ID) (*note.Note, error) {
	return r.getOne(ctx, squirrel.Eq{"id": noteID}, noteID.String(), false)
}

// GetByIDForUpdate retrieves a note with its items and a row lock.
func (r *Repo) GetByIDForUpdate(ctx context.Context, noteID id.ID) (*note.Note, error) {
	return r.getOne(ctx, squirrel.Eq{"id": noteID}, noteID.String(), true)
}

// GetByNumber retrieves a note by document number.
func (r *Repo) GetByNumber(ctx context.Context, number string) (*note.Note, error) {
	return r.getOne(ctx, squirrel.Eq{"number": number}, number, false)
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Eq, ref string, forUpdate bool) (*note.Note, error) {
	q := r.builder.Select(noteColumns...).
		From(notesTable).
		Where(where).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var n note.Note
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &n, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement note", ref)
		}
		return nil, fmt.Errorf("get note: %w", err)
	}

	if err := r.loadItems(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) loadItems(ctx context.Context, n *note.Note) error {
	q := r.builder.Select(itemColumns...).
		From(noteItemsTable).
		Where(squirrel.Eq{"note_id": n.ID}).
		OrderBy("epi_type_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &n.Items, sql, args...); err != nil {
		return fmt.Errorf("select items: %w", err)
	}
	return nil
}

// List returns notes matching the filter, newest first, with a total count.
func (r *Repo) List(ctx context.Context, filter note.ListFilter) ([]*note.Note, int64, error) {
	base := r.builder.Select().From(notesTable)
	base = applyFilter(base, filter)

	countQ := base.Column("COUNT(*)")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	listQ := base.Columns(noteColumns...).OrderBy("issue_date DESC", "created_at DESC")
	if filter.Limit > 0 {
		listQ = listQ.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		listQ = listQ.Offset(uint64(filter.Offset))
	}

	sql, args, err := listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}

	var notes []*note.Note
	if err := pgxscan.Select(ctx, querier, &notes, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select notes: %w", err)
	}

	for _, n := range notes {
		if err := r.loadItems(ctx, n); err != nil {
			return nil, 0, err
		}
	}
	return notes, total, nil
}

func applyFilter(q squirrel.SelectBuilder, filter note.ListFilter) squirrel.SelectBuilder {
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"origin_warehouse_id": *filter.WarehouseID},
			squirrel.Eq{"dest_warehouse_id": *filter.WarehouseID},
		})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *filter.ToDate})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	return q
}

// Ensure interface compliance.
var _ note.Repository = (*Repo)(nil)
