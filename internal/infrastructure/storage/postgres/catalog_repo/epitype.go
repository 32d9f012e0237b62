package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/infrastructure/storage/postgres"
)

const epiTypesTable = "cat_epi_types"

var epiTypeColumns = []string{
	"id", "version", "active", "name", "description",
	"ca_number", "lifespan_days", "warning_days", "unit_cost",
}

// EPITypeRepo implements epitype.Repository.
type EPITypeRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewEPITypeRepo creates an EPI type repository.
func NewEPITypeRepo(txManager *postgres.TxManager) *EPITypeRepo {
	return &EPITypeRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new EPI type.
func (r *EPITypeRepo) Create(ctx context.Context, t *epitype.EPIType) error {
	q := r.builder.Insert(epiTypesTable).
		Columns(epiTypeColumns...).
		Values(
			t.ID, t.Version, t.Active, t.Name, t.Description,
			t.CANumber, t.LifespanDays, t.WarningDays, t.UnitCost,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert epi type: %w", err)
	}
	return nil
}

// Update persists EPI type changes with optimistic locking.
func (r *EPITypeRepo) Update(ctx context.Context, t *epitype.EPIType) error {
	currentVersion := t.Version - 1

	q := r.builder.Update(epiTypesTable).
		Set("version", t.Version).
		Set("active", t.Active).
		Set("name", t.Name).
		Set("description", t.Description).
		Set("lifespan_days", t.LifespanDays).
		Set("warning_days", t.WarningDays).
		Set("unit_cost", t.UnitCost).
		Where(squirrel.Eq{
			"id":      t.ID,
			"version": currentVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update epi type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("EPI type", t.ID.String())
	}
	return nil
}

// GetByID retrieves an EPI type.
func (r *EPITypeRepo) GetByID(ctx context.Context, epiTypeID id.ID) (*epitype.EPIType, error) {
	return r.getOne(ctx, squirrel.Eq{"id": epiTypeID}, epiTypeID.String())
}

// GetByCANumber retrieves an EPI type by approval certificate number.
func (r *EPITypeRepo) GetByCANumber(ctx context.Context, caNumber string) (*epitype.EPIType, error) {
	return r.getOne(ctx, squirrel.Eq{"ca_number": caNumber}, caNumber)
}

func (r *EPITypeRepo) getOne(ctx context.Context, where squirrel.Eq, ref string) (*epitype.EPIType, error) {
	q := r.builder.Select(epiTypeColumns...).
		From(epiTypesTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t epitype.EPIType
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("EPI type", ref)
		}
		return nil, fmt.Errorf("get epi type: %w", err)
	}
	return &t, nil
}

// GetByIDs retrieves EPI types by ID.
func (r *EPITypeRepo) GetByIDs(ctx context.Context, epiTypeIDs []id.ID) ([]*epitype.EPIType, error) {
	if len(epiTypeIDs) == 0 {
		return nil, nil
	}

	q := r.builder.Select(epiTypeColumns...).
		From(epiTypesTable).
		Where(squirrel.Eq{"id": epiTypeIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var types []*epitype.EPIType
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &types, sql, args...); err != nil {
		return nil, fmt.Errorf("select epi types: %w", err)
	}
	return types, nil
}

// List returns EPI types matching the filter.
func (r *EPITypeRepo) List(ctx context.Context, filter epitype.ListFilter) ([]*epitype.EPIType, error) {
	q := r.builder.Select(epiTypeColumns...).
		From(epiTypesTable).
		OrderBy("name")

	if !filter.IncludeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"ca_number": pattern},
		})
	}
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

	var types []*epitype.EPIType
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &types, sql, args...); err != nil {
		return nil, fmt.Errorf("select epi types: %w", err)
	}
	return types, nil
}

// Ensure interface compliance.
var _ epitype.Repository = (*EPITypeRepo)(nil)
