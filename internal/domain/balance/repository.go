package balance

import (
	"context"

	"epitrack/internal/core/id"
)

// Repository defines persistence operations for balance rows.
type Repository interface {
	// Get returns the balance row, or a zero-quantity row if none exists yet.
	Get(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error)

	// GetForUpdate returns the balance row with a row lock.
	// Must be called inside a transaction; missing rows return zero quantity.
	GetForUpdate(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error)

	// Upsert writes the row, creating it if absent.
	Upsert(ctx context.Context, b Balance) error

	// ListByWarehouse returns balances for a warehouse.
	ListByWarehouse(ctx context.Context, warehouseID id.ID, filter Filter) ([]Balance, error)

	// ListByEPIType returns balances for an EPI type across warehouses.
	ListByEPIType(ctx context.Context, epiTypeID id.ID) ([]Balance, error)
}

// Filter narrows balance listings.
type Filter struct {
	EPITypeIDs  []id.ID
	Status      *ItemStatus
	ExcludeZero bool
}
