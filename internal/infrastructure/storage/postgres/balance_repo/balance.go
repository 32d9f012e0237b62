// Package balance_repo provides the PostgreSQL implementation of the
// stock-balance repository.
package balance_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/id"
	"epitrack/internal/domain/balance"
	"epitrack/internal/infrastructure/storage/postgres"
)

const balancesTable = "stock_balances"

var balanceColumns = []string{
	"warehouse_id", "epi_type_id", "item_status",
	"quantity", "last_movement_at", "updated_at",
}

// Repo implements balance.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// New creates a balance repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func zeroRow(warehouseID, epiTypeID id.ID, status balance.ItemStatus) balance.Balance {
	return balance.Balance{
		WarehouseID: warehouseID,
		EPITypeID:   epiTypeID,
		Status:      status,
		Quantity:    0,
	}
}

// Get returns the balance row, or a zero-quantity row if none exists yet.
func (r *Repo) Get(ctx context.Context, warehouseID, epiTypeID id.ID, status balance.ItemStatus) (balance.Balance, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{
			"warehouse_id": warehouseID,
			"epi_type_id":  epiTypeID,
			"item_status":  status,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return balance.Balance{}, fmt.Errorf("build query: %w", err)
	}

	var b balance.Balance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return zeroRow(warehouseID, epiTypeID, status), nil
		}
		return balance.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetForUpdate returns the balance row with a pessimistic lock.
// Missing rows return zero quantity; the subsequent Upsert creates them.
func (r *Repo) GetForUpdate(ctx context.Context, warehouseID, epiTypeID id.ID, status balance.ItemStatus) (balance.Balance, error) {
	sql := `
		SELECT warehouse_id, epi_type_id, item_status, quantity, last_movement_at, updated_at
		FROM stock_balances
		WHERE warehouse_id = $1 AND epi_type_id = $2 AND item_status = $3
		FOR UPDATE
	`

	var b balance.Balance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, warehouseID, epiTypeID, status); err != nil {
		if pgxscan.NotFound(err) {
			return zeroRow(warehouseID, epiTypeID, status), nil
		}
		return balance.Balance{}, fmt.Errorf("get balance for update: %w", err)
	}
	return b, nil
}

// Upsert writes the row, creating it if absent.
func (r *Repo) Upsert(ctx context.Context, b balance.Balance) error {
	sql := `
		INSERT INTO stock_balances (
			warehouse_id, epi_type_id, item_status,
			quantity, last_movement_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (warehouse_id, epi_type_id, item_status) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at = EXCLUDED.updated_at
	`

	querier := r.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		b.WarehouseID, b.EPITypeID, b.Status,
		b.Quantity, b.LastMovementAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// ListByWarehouse returns balances for a warehouse.
func (r *Repo) ListByWarehouse(ctx context.Context, warehouseID id.ID, filter balance.Filter) ([]balance.Balance, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID})

	if len(filter.EPITypeIDs) > 0 {
		q = q.Where(squirrel.Eq{"epi_type_id": filter.EPITypeIDs})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"item_status": *filter.Status})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}

	q = q.OrderBy("epi_type_id", "item_status")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []balance.Balance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

// ListByEPIType returns non-zero balances for an EPI type across warehouses.
func (r *Repo) ListByEPIType(ctx context.Context, epiTypeID id.ID) ([]balance.Balance, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"epi_type_id": epiTypeID}).
		Where(squirrel.NotEq{"quantity": int64(0)}).
		OrderBy("warehouse_id", "item_status")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []balance.Balance
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

// Ensure interface compliance.
var _ balance.Repository = (*Repo)(nil)
