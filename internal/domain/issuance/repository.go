package issuance

import (
	"context"
	"time"

	"epitrack/internal/core/id"
)

// Repository defines persistence operations for deliveries.
type Repository interface {
	// Create persists a new delivery with its items.
	Create(ctx context.Context, e *Entrega) error

	// Update persists header and item-state changes with optimistic
	// locking on the delivery's version.
	Update(ctx context.Context, e *Entrega) error

	// GetByID retrieves a delivery with its items.
	GetByID(ctx context.Context, entregaID id.ID) (*Entrega, error)

	// GetByIDForUpdate retrieves a delivery with a row lock on the header.
	// Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, entregaID id.ID) (*Entrega, error)

	// List returns deliveries matching the filter, newest first, with the
	// total count before pagination.
	List(ctx context.Context, filter ListFilter) ([]*Entrega, int64, error)

	// CountOpenItems counts units still with the employee across all of a
	// PPE record's deliveries.
	CountOpenItems(ctx context.Context, fichaID id.ID) (int64, error)

	// ListOpenItemsByFicha returns every open unit on a PPE record, with
	// its delivery, oldest first.
	ListOpenItemsByFicha(ctx context.Context, fichaID id.ID) ([]*OpenItem, error)
}

// OpenItem pairs an open unit with its delivery header.
type OpenItem struct {
	Item    *Item
	Entrega *Entrega
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	FichaID     *id.ID
	WarehouseID *id.ID
	Status      *Status
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}
