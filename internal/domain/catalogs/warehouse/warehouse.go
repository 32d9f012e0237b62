// Package warehouse provides the warehouse catalog.
package warehouse

import (
	"context"
	"strings"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
)

// Warehouse is a physical stock location.
type Warehouse struct {
	entity.BaseCatalog

	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location,omitempty"`
}

// New creates an active warehouse.
func New(code, name, location string) *Warehouse {
	return &Warehouse{
		BaseCatalog: entity.NewBaseCatalog(),
		Code:        strings.ToUpper(strings.TrimSpace(code)),
		Name:        strings.TrimSpace(name),
		Location:    strings.TrimSpace(location),
	}
}

// Validate implements entity.Validatable.
func (w *Warehouse) Validate(ctx context.Context) error {
	if w.Code == "" {
		return apperror.NewValidation("warehouse code is required").WithDetail("field", "code")
	}
	if w.Name == "" {
		return apperror.NewValidation("warehouse name is required").WithDetail("field", "name")
	}
	return nil
}

// Repository defines persistence operations for warehouses.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	Update(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	GetByCode(ctx context.Context, code string) (*Warehouse, error)
	List(ctx context.Context, includeInactive bool) ([]*Warehouse, error)
}

var _ entity.Validatable = (*Warehouse)(nil)
