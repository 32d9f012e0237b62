package balance

import (
	"context"
	"sync"

	"epitrack/internal/core/id"
)

type memoryKey struct {
	warehouseID id.ID
	epiTypeID   id.ID
	status      ItemStatus
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[memoryKey]Balance
}

// NewMemoryRepo creates an empty in-memory balance repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[memoryKey]Balance)}
}

func (r *MemoryRepo) Get(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(warehouseID, epiTypeID, status), nil
}

func (r *MemoryRepo) GetForUpdate(ctx context.Context, warehouseID, epiTypeID id.ID, status ItemStatus) (Balance, error) {
	return r.Get(ctx, warehouseID, epiTypeID, status)
}

func (r *MemoryRepo) Upsert(ctx context.Context, b Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[memoryKey{b.WarehouseID, b.EPITypeID, b.Status}] = b
	return nil
}

func (r *MemoryRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, filter Filter) ([]Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Balance
	for key, b := range r.rows {
		if key.warehouseID != warehouseID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.ExcludeZero && b.Quantity == 0 {
			continue
		}
		if len(filter.EPITypeIDs) > 0 && !containsID(filter.EPITypeIDs, b.EPITypeID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *MemoryRepo) ListByEPIType(ctx context.Context, epiTypeID id.ID) ([]Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Balance
	for key, b := range r.rows {
		if key.epiTypeID == epiTypeID && b.Quantity != 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *MemoryRepo) get(warehouseID, epiTypeID id.ID, status ItemStatus) Balance {
	if b, ok := r.rows[memoryKey{warehouseID, epiTypeID, status}]; ok {
		return b
	}
	return Balance{
		WarehouseID: warehouseID,
		EPITypeID:   epiTypeID,
		Status:      status,
	}
}

func containsID(ids []id.ID, target id.ID) bool {
	for _, v := range ids {
		if v == target {
			return true
		}
	}
	return false
}

var _ Repository = (*MemoryRepo)(nil)
