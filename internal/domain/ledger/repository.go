package ledger

import (
	"context"
	"time"

	"epitrack/internal/core/id"
	"epitrack/internal/domain/balance"
)

// Repository defines persistence operations for ledger entries.
// Entries are append-only: there is no update or delete.
type Repository interface {
	// Create appends one entry.
	Create(ctx context.Context, e *Entry) error

	// CreateBatch appends entries in one round trip (COPY when transactional).
	CreateBatch(ctx context.Context, entries []*Entry) error

	// GetByID retrieves an entry.
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// GetByNote retrieves all entries produced by a movement note,
	// in creation order.
	GetByNote(ctx context.Context, noteID id.ID) ([]*Entry, error)

	// GetByEntrega retrieves all entries produced by an issuance.
	GetByEntrega(ctx context.Context, entregaID id.ID) ([]*Entry, error)

	// HasReversal reports whether a reversal entry already points at entryID.
	HasReversal(ctx context.Context, entryID id.ID) (bool, error)

	// History returns the kardex: chronological entries for a
	// (warehouse, EPI type) pair.
	History(ctx context.Context, warehouseID, epiTypeID id.ID, filter HistoryFilter) ([]*Entry, error)
}

// HistoryFilter narrows kardex queries.
type HistoryFilter struct {
	Kind     *Kind
	Status   *balance.ItemStatus
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
