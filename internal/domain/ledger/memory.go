package ledger

import (
	"context"
	"sync"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewMemoryRepo creates an empty in-memory ledger repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) CreateBatch(ctx context.Context, entries []*Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, entryID id.ID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return nil, apperror.NewNotFound("ledger entry", entryID.String())
}

func (r *MemoryRepo) GetByNote(ctx context.Context, noteID id.ID) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.OriginNoteID != nil && *e.OriginNoteID == noteID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) GetByEntrega(ctx context.Context, entregaID id.ID) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.OriginEntregaID != nil && *e.OriginEntregaID == entregaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) HasReversal(ctx context.Context, entryID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ReversalOfEntryID != nil && *e.ReversalOfEntryID == entryID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) History(ctx context.Context, warehouseID, epiTypeID id.ID, filter HistoryFilter) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.WarehouseID != warehouseID || e.EPITypeID != epiTypeID {
			continue
		}
		if filter.Kind != nil && e.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Len reports the number of stored entries.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

var _ Repository = (*MemoryRepo)(nil)
