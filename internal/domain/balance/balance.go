// Package balance provides the current-stock balance store.
// One row exists per (warehouse, EPI type, item status) triple; rows are
// created lazily on first movement and mutated only through the Store.
package balance

import (
	"time"

	"epitrack/internal/core/id"
)

// ItemStatus is the stock dimension an EPI unit sits in.
type ItemStatus string

const (
	// StatusAvailable is stock ready to be issued
	StatusAvailable ItemStatus = "available"
	// StatusQuarantine is returned stock awaiting inspection
	StatusQuarantine ItemStatus = "quarantine"
	// StatusInspection is stock under technical inspection
	StatusInspection ItemStatus = "inspection"
	// StatusDiscarded is stock routed to disposal
	StatusDiscarded ItemStatus = "discarded"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusQuarantine, StatusInspection, StatusDiscarded:
		return true
	}
	return false
}

// Balance is the current quantity for one (warehouse, EPI type, status) row.
// Quantity never goes below zero unless the negative-stock override is
// active for the mutating call.
type Balance struct {
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	EPITypeID   id.ID      `db:"epi_type_id" json:"epiTypeId"`
	Status      ItemStatus `db:"item_status" json:"itemStatus"`

	Quantity int64 `db:"quantity" json:"quantity"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
