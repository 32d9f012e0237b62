package note

import (
	"context"
	"time"

	"epitrack/internal/core/id"
)

// Repository defines persistence operations for movement notes.
type Repository interface {
	// Create persists a new note with its items.
	Create(ctx context.Context, n *Note) error

	// Update persists header and item changes using optimistic locking on
	// the note's version. Items are replaced as a set.
	Update(ctx context.Context, n *Note) error

	// GetByID retrieves a note with its items.
	GetByID(ctx context.Context, noteID id.ID) (*Note, error)

	// GetByIDForUpdate retrieves a note with its items and a row lock on
	// the header. Must be called inside a transaction; conclusion and
	// cancellation serialize on this lock.
	GetByIDForUpdate(ctx context.Context, noteID id.ID) (*Note, error)

	// GetByNumber retrieves a note by its document number.
	GetByNumber(ctx context.Context, number string) (*Note, error)

	// List returns notes matching the filter, newest first, with the
	// total count before pagination.
	List(ctx context.Context, filter ListFilter) ([]*Note, int64, error)
}

// ListFilter narrows note listings.
type ListFilter struct {
	Kind        *NoteKind
	Status      *Status
	WarehouseID *id.ID
	FromDate    *time.Time
	ToDate      *time.Time
	Search      string
	Limit       int
	Offset      int
}
