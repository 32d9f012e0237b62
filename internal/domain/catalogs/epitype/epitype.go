// Package epitype provides the EPI type catalog: the kinds of protective
// equipment the system tracks, with their certificate, lifespan and cost.
package epitype

import (
	"context"
	"strings"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

// EPIType is one kind of protective equipment.
type EPIType struct {
	entity.BaseCatalog

	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`

	// CANumber is the equipment's approval certificate (Certificado de
	// Aprovação). Unique when set.
	CANumber string `db:"ca_number" json:"caNumber,omitempty"`

	// LifespanDays is how long an issued unit remains usable. Zero means
	// no expiry: issued units get no return deadline.
	LifespanDays int `db:"lifespan_days" json:"lifespanDays"`

	// WarningDays is how many days before expiry a unit counts as
	// near-expiry in possession reports.
	WarningDays int `db:"warning_days" json:"warningDays"`

	// UnitCost is the reference acquisition cost of one unit.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
}

// New creates an active EPI type.
func New(name, caNumber string, lifespanDays, warningDays int, unitCost types.Money) *EPIType {
	return &EPIType{
		BaseCatalog:  entity.NewBaseCatalog(),
		Name:         strings.TrimSpace(name),
		CANumber:     strings.TrimSpace(caNumber),
		LifespanDays: lifespanDays,
		WarningDays:  warningDays,
		UnitCost:     unitCost,
	}
}

// Validate implements entity.Validatable.
func (t *EPIType) Validate(ctx context.Context) error {
	if t.Name == "" {
		return apperror.NewValidation("EPI type name is required").WithDetail("field", "name")
	}
	if t.LifespanDays < 0 {
		return apperror.NewValidation("lifespan cannot be negative").WithDetail("lifespanDays", t.LifespanDays)
	}
	if t.WarningDays < 0 {
		return apperror.NewValidation("warning window cannot be negative").WithDetail("warningDays", t.WarningDays)
	}
	if t.LifespanDays > 0 && t.WarningDays >= t.LifespanDays {
		return apperror.NewValidation("warning window must be shorter than the lifespan").
			WithDetail("lifespanDays", t.LifespanDays).
			WithDetail("warningDays", t.WarningDays)
	}
	if t.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").WithDetail("unitCost", t.UnitCost.String())
	}
	return nil
}

// HasExpiry reports whether issued units of this type expire.
func (t *EPIType) HasExpiry() bool {
	return t.LifespanDays > 0
}

// Repository defines persistence operations for EPI types.
type Repository interface {
	Create(ctx context.Context, t *EPIType) error
	Update(ctx context.Context, t *EPIType) error
	GetByID(ctx context.Context, epiTypeID id.ID) (*EPIType, error)
	GetByCANumber(ctx context.Context, caNumber string) (*EPIType, error)
	GetByIDs(ctx context.Context, epiTypeIDs []id.ID) ([]*EPIType, error)
	List(ctx context.Context, filter ListFilter) ([]*EPIType, error)
}

// ListFilter narrows EPI type listings.
type ListFilter struct {
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

var _ entity.Validatable = (*EPIType)(nil)
