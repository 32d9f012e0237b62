package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/infrastructure/storage/postgres"
)

const fichasTable = "fichas"

var fichaColumns = []string{
	"id", "version", "employee_name", "employee_registration",
	"department", "job_title", "status",
	"created_at", "updated_at", "created_by", "updated_by",
}

// FichaRepo implements ficha.Repository.
type FichaRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewFichaRepo creates a PPE record repository.
func NewFichaRepo(txManager *postgres.TxManager) *FichaRepo {
	return &FichaRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new PPE record.
func (r *FichaRepo) Create(ctx context.Context, f *ficha.Ficha) error {
	q := r.builder.Insert(fichasTable).
		Columns(fichaColumns...).
		Values(
			f.ID, f.Version, f.EmployeeName, f.EmployeeRegistration,
			f.Department, f.JobTitle, f.Status,
			f.CreatedAt, f.UpdatedAt, f.CreatedBy, f.UpdatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ficha: %w", err)
	}
	return nil
}

// Update persists record changes with optimistic locking.
func (r *FichaRepo) Update(ctx context.Context, f *ficha.Ficha) error {
	currentVersion := f.Version - 1

	q := r.builder.Update(fichasTable).
		Set("version", f.Version).
		Set("employee_name", f.EmployeeName).
		Set("department", f.Department).
		Set("job_title", f.JobTitle).
		Set("status", f.Status).
		Set("updated_at", f.UpdatedAt).
		Set("updated_by", f.UpdatedBy).
		Where(squirrel.Eq{
			"id":      f.ID,
			"version": currentVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ficha: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("PPE record", f.ID.String())
	}
	return nil
}

// GetByID retrieves a PPE record.
func (r *FichaRepo) GetByID(ctx context.Context, fichaID id.ID) (*ficha.Ficha, error) {
	return r.getOne(ctx, squirrel.Eq{"id": fichaID}, fichaID.String())
}

// GetByRegistration retrieves a record by employee registration.
func (r *FichaRepo) GetByRegistration(ctx context.Context, registration string) (*ficha.Ficha, error) {
	return r.getOne(ctx, squirrel.Eq{"employee_registration": registration}, registration)
}

func (r *FichaRepo) getOne(ctx context.Context, where squirrel.Eq, ref string) (*ficha.Ficha, error) {
	q := r.builder.Select(fichaColumns...).
		From(fichasTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var f ficha.Ficha
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &f, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("PPE record", ref)
		}
		return nil, fmt.Errorf("get ficha: %w", err)
	}
	return &f, nil
}

// List returns PPE records matching the filter with a total count.
func (r *FichaRepo) List(ctx context.Context, filter ficha.ListFilter) ([]*ficha.Ficha, int64, error) {
	base := r.builder.Select().From(fichasTable)
	if filter.Status != nil {
		base = base.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Department != "" {
		base = base.Where(squirrel.Eq{"department": filter.Department})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where(squirrel.Or{
			squirrel.ILike{"employee_name": pattern},
			squirrel.ILike{"employee_registration": pattern},
		})
	}

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fichas: %w", err)
	}

	listQ := base.Columns(fichaColumns...).OrderBy("employee_name")
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

	var fichas []*ficha.Ficha
	if err := pgxscan.Select(ctx, querier, &fichas, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select fichas: %w", err)
	}
	return fichas, total, nil
}

// Ensure interface compliance.
var _ ficha.Repository = (*FichaRepo)(nil)
