package balance

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// Store mutates balance rows while enforcing the non-negative invariant.
// All mutations lock the row first (GetForUpdate), so callers must run
// inside a transaction; concurrent movements on the same row serialize on
// the database lock.
type Store struct {
	repo Repository
}

// NewStore creates a balance store.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Get returns the current balance (zero-quantity row if none exists).
func (s *Store) Get(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error) {
	return s.repo.Get(ctx, warehouseID, epiTypeID, status)
}

// GetLocked returns the balance with a row lock for subsequent mutation.
func (s *Store) GetLocked(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error) {
	return s.repo.GetForUpdate(ctx, warehouseID, epiTypeID, status)
}

// Add increases the row's quantity, creating the row lazily.
func (s *Store) Add(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus, qty int64) (Balance, error) {
	if qty <= 0 {
		return Balance{}, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	b, err := s.repo.GetForUpdate(ctx, warehouseID, epiTypeID, status)
	if err != nil {
		return Balance{}, err
	}

	b.Quantity += qty
	return s.write(ctx, b)
}

// Remove decreases the row's quantity. Fails with an insufficient-stock
// business error if the result would go below zero, unless allowNegative
// is set (system-wide override threaded in by the use case).
func (s *Store) Remove(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus, qty int64, allowNegative bool) (Balance, error) {
	if qty <= 0 {
		return Balance{}, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	b, err := s.repo.GetForUpdate(ctx, warehouseID, epiTypeID, status)
	if err != nil {
		return Balance{}, err
	}

	if b.Quantity < qty && !allowNegative {
		return Balance{}, apperror.NewInsufficientStock(epiTypeID.String(), qty, b.Quantity)
	}

	b.Quantity -= qty
	return s.write(ctx, b)
}

// Set writes an absolute quantity. The non-negative floor is the caller's
// concern here: the ledger service checks it against the negative-stock
// override before handing the target to Set.
func (s *Store) Set(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus, qty int64) (Balance, error) {
	b, err := s.repo.GetForUpdate(ctx, warehouseID, epiTypeID, status)
	if err != nil {
		return Balance{}, err
	}

	b.Quantity = qty
	return s.write(ctx, b)
}

// Available returns the available-status quantity for a pair.
func (s *Store) Available(ctx context.Context, warehouseID, epiTypeID id.ID) (int64, error) {
	b, err := s.repo.Get(ctx, warehouseID, epiTypeID, StatusAvailable)
	if err != nil {
		return 0, err
	}
	return b.Quantity, nil
}

// WarehouseStock lists balances for a warehouse.
func (s *Store) WarehouseStock(ctx context.Context, warehouseID id.ID, filter Filter) ([]Balance, error) {
	return s.repo.ListByWarehouse(ctx, warehouseID, filter)
}

// TypeStock lists balances for an EPI type across warehouses.
func (s *Store) TypeStock(ctx context.Context, epiTypeID id.ID) ([]Balance, error) {
	return s.repo.ListByEPIType(ctx, epiTypeID)
}

func (s *Store) write(ctx context.Context, b Balance) (Balance, error) {
	now := time.Now().UTC()
	b.LastMovementAt = now
	b.UpdatedAt = now

	if err := s.repo.Upsert(ctx, b); err != nil {
		return Balance{}, err
	}
	return b, nil
}
