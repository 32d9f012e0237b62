// Package issuance_repo provides the PostgreSQL implementation of the
// delivery repository.
package issuance_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/issuance"
	"epitrack/internal/infrastructure/storage/postgres"
)

const (
	entregasTable     = "entregas"
	entregaItemsTable = "entrega_items"
)

var entregaColumns = []string{
	"id", "version", "number", "ficha_id", "warehouse_id", "status",
	"issued_at", "signed_at", "cancelled_at", "notes",
	"created_at", "updated_at", "created_by", "updated_by",
}

var itemColumns = []string{
	"id", "entrega_id", "epi_type_id", "state",
	"issued_at", "return_deadline", "returned_at", "return_notes",
}

// Repo implements issuance.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// New creates a delivery repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new delivery with its items. Item inserts use COPY
// when inside a transaction, since a delivery can carry many unit rows.
func (r *Repo) Create(ctx context.Context, e *issuance.Entrega) error {
	q := r.builder.Insert(entregasTable).
		Columns(entregaColumns...).
		Values(
			e.ID, e.Version, e.Number, e.FichaID, e.WarehouseID, e.Status,
			e.IssuedAt, e.SignedAt, e.CancelledAt, e.Notes,
			e.CreatedAt, e.UpdatedAt, e.CreatedBy, e.UpdatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entrega: %w", err)
	}

	if len(e.Items) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(e.Items))
		for _, it := range e.Items {
			rows = append(rows, []any{
				it.ID, it.EntregaID, it.EPITypeID, it.State,
				it.IssuedAt, it.ReturnDeadline, it.ReturnedAt, it.ReturnNotes,
			})
		}
		if _, err := postgres.CopyRows(ctx, r.txManager, entregaItemsTable, itemColumns, rows); err != nil {
			return fmt.Errorf("copy items: %w", err)
		}
		return nil
	}

	iq := r.builder.Insert(entregaItemsTable).Columns(itemColumns...)
	for _, it := range e.Items {
		iq = iq.Values(
			it.ID, it.EntregaID, it.EPITypeID, it.State,
			it.IssuedAt, it.ReturnDeadline, it.ReturnedAt, it.ReturnNotes,
		)
	}
	iSQL, iArgs, err := iq.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}
	if _, err := querier.Exec(ctx, iSQL, iArgs...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// Update persists header and item-state changes with optimistic locking.
// The caller's Touch() has already advanced the version; the previous
// version guards the update.
func (r *Repo) Update(ctx context.Context, e *issuance.Entrega) error {
	currentVersion := e.Version - 1

	q := r.builder.Update(entregasTable).
		Set("version", e.Version).
		Set("status", e.Status).
		Set("signed_at", e.SignedAt).
		Set("cancelled_at", e.CancelledAt).
		Set("notes", e.Notes).
		Set("updated_at", e.UpdatedAt).
		Set("updated_by", e.UpdatedBy).
		Where(squirrel.Eq{
			"id":      e.ID,
			"version": currentVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update entrega: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("entrega", e.ID.String())
	}

	for _, it := range e.Items {
		iq := r.builder.Update(entregaItemsTable).
			Set("state", it.State).
			Set("returned_at", it.ReturnedAt).
			Set("return_notes", it.ReturnNotes).
			Where(squirrel.Eq{"id": it.ID})

		iSQL, iArgs, err := iq.ToSql()
		if err != nil {
			return fmt.Errorf("build update item: %w", err)
		}
		if _, err := querier.Exec(ctx, iSQL, iArgs...); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a delivery with its items.
func (r *Repo) GetByID(ctx context.Context, entregaID id.ID) (*issuance.Entrega, error) {
	return r.getOne(ctx, entregaID, false)
}

// GetByIDForUpdate retrieves a delivery with a row lock on the header.
func (r *Repo) GetByIDForUpdate(ctx context.Context, entregaID id.ID) (*issuance.Entrega, error) {
	return r.getOne(ctx, entregaID, true)
}

func (r *Repo) getOne(ctx context.Context, entregaID id.ID, forUpdate bool) (*issuance.Entrega, error) {
	q := r.builder.Select(entregaColumns...).
		From(entregasTable).
		Where(squirrel.Eq{"id": entregaID}).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e issuance.Entrega
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("entrega", entregaID.String())
		}
		return nil, fmt.Errorf("get entrega: %w", err)
	}

	if err := r.loadItems(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) loadItems(ctx context.Context, e *issuance.Entrega) error {
	q := r.builder.Select(itemColumns...).
		From(entregaItemsTable).
		Where(squirrel.Eq{"entrega_id": e.ID}).
		OrderBy("issued_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &e.Items, sql, args...); err != nil {
		return fmt.Errorf("select items: %w", err)
	}
	return nil
}

// List returns deliveries matching the filter with a total count.
func (r *Repo) List(ctx context.Context, filter issuance.ListFilter) ([]*issuance.Entrega, int64, error) {
	base := r.builder.Select().From(entregasTable)
	if filter.FichaID != nil {
		base = base.Where(squirrel.Eq{"ficha_id": *filter.FichaID})
	}
	if filter.WarehouseID != nil {
		base = base.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		base = base.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromDate != nil {
		base = base.Where(squirrel.GtOrEq{"issued_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		base = base.Where(squirrel.LtOrEq{"issued_at": *filter.ToDate})
	}

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entregas: %w", err)
	}

	listQ := base.Columns(entregaColumns...).OrderBy("issued_at DESC")
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

	var entregas []*issuance.Entrega
	if err := pgxscan.Select(ctx, querier, &entregas, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select entregas: %w", err)
	}

	for _, e := range entregas {
		if err := r.loadItems(ctx, e); err != nil {
			return nil, 0, err
		}
	}
	return entregas, total, nil
}

// CountOpenItems counts units still with the employee across a record's
// deliveries.
func (r *Repo) CountOpenItems(ctx context.Context, fichaID id.ID) (int64, error) {
	sql := `
		SELECT COUNT(*)
		FROM entrega_items i
		JOIN entregas e ON e.id = i.entrega_id
		WHERE e.ficha_id = $1
		  AND e.status <> 'cancelled'
		  AND i.state = 'with_employee'
	`

	var count int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, fichaID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open items: %w", err)
	}
	return count, nil
}

// ListOpenItemsByFicha returns every open unit on a PPE record, oldest
// first, paired with its delivery header.
func (r *Repo) ListOpenItemsByFicha(ctx context.Context, fichaID id.ID) ([]*issuance.OpenItem, error) {
	sql := `
		SELECT
			i.id, i.entrega_id, i.epi_type_id, i.state,
			i.issued_at, i.return_deadline, i.returned_at, i.return_notes,
			e.id AS e_id, e.number AS e_number, e.ficha_id AS e_ficha_id,
			e.warehouse_id AS e_warehouse_id, e.status AS e_status,
			e.issued_at AS e_issued_at
		FROM entrega_items i
		JOIN entregas e ON e.id = i.entrega_id
		WHERE e.ficha_id = $1
		  AND e.status <> 'cancelled'
		  AND i.state = 'with_employee'
		ORDER BY i.issued_at, i.id
	`

	querier := r.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, fichaID)
	if err != nil {
		return nil, fmt.Errorf("query open items: %w", err)
	}
	defer rows.Close()

	var open []*issuance.OpenItem
	for rows.Next() {
		item := &issuance.Item{}
		entrega := &issuance.Entrega{}
		err := rows.Scan(
			&item.ID, &item.EntregaID, &item.EPITypeID, &item.State,
			&item.IssuedAt, &item.ReturnDeadline, &item.ReturnedAt, &item.ReturnNotes,
			&entrega.ID, &entrega.Number, &entrega.FichaID,
			&entrega.WarehouseID, &entrega.Status,
			&entrega.IssuedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan open item: %w", err)
		}
		open = append(open, &issuance.OpenItem{Item: item, Entrega: entrega})
	}
	return open, rows.Err()
}

// Ensure interface compliance.
var _ issuance.Repository = (*Repo)(nil)
