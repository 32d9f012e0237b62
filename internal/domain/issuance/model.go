// Package issuance provides equipment deliveries (entregas): unit-level
// issuance of EPIs to employees, employee signature, returns and the
// current-possession view.
package issuance

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
	"epitrack/internal/core/numerator"
)

// Status is the delivery lifecycle state. The post-signature states are
// derived from the items: RefreshStatus recomputes them and is idempotent.
type Status string

const (
	// StatusPendingSignature is issued but not yet acknowledged by the employee
	StatusPendingSignature Status = "pending_signature"
	// StatusActive is signed with all units still with the employee
	StatusActive Status = "active"
	// StatusPartiallyReturned has some but not all units closed out
	StatusPartiallyReturned Status = "partially_returned"
	// StatusFullyReturned has every unit closed out
	StatusFullyReturned Status = "fully_returned"
	// StatusCancelled is terminal; stock was restored on cancellation
	StatusCancelled Status = "cancelled"
)

// ItemState tracks one issued unit.
type ItemState string

const (
	// StateWithEmployee is an open unit in the employee's possession
	StateWithEmployee ItemState = "with_employee"
	// StateReturned came back usable and went to quarantine for inspection
	StateReturned ItemState = "returned"
	// StateDamaged came back unusable and went to discarded stock
	StateDamaged ItemState = "damaged"
	// StateLost never came back; no stock effect
	StateLost ItemState = "lost"
)

// Closed reports whether the unit is no longer with the employee.
func (s ItemState) Closed() bool {
	return s == StateReturned || s == StateDamaged || s == StateLost
}

// NumberConfig is the auto-numbering configuration for deliveries.
var NumberConfig = numerator.DefaultConfig("EPI")

// Item is one issued unit. Quantity is always exactly one: each physical
// unit has its own row, state and return deadline.
type Item struct {
	ID        id.ID `db:"id" json:"id"`
	EntregaID id.ID `db:"entrega_id" json:"entregaId"`
	EPITypeID id.ID `db:"epi_type_id" json:"epiTypeId"`

	State ItemState `db:"state" json:"state"`

	IssuedAt time.Time `db:"issued_at" json:"issuedAt"`

	// ReturnDeadline is issue time plus the type's lifespan; nil for
	// types without expiry.
	ReturnDeadline *time.Time `db:"return_deadline" json:"returnDeadline,omitempty"`

	ReturnedAt  *time.Time `db:"returned_at" json:"returnedAt,omitempty"`
	ReturnNotes string     `db:"return_notes" json:"returnNotes,omitempty"`
}

// Overdue reports whether the unit is open past its deadline at now.
func (it *Item) Overdue(now time.Time) bool {
	return it.State == StateWithEmployee && it.ReturnDeadline != nil && now.After(*it.ReturnDeadline)
}

// Entrega is one delivery of equipment to an employee.
type Entrega struct {
	entity.BaseDocument

	Number      string `db:"number" json:"number"`
	FichaID     id.ID  `db:"ficha_id" json:"fichaId"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`

	Status Status `db:"status" json:"status"`

	IssuedAt    time.Time  `db:"issued_at" json:"issuedAt"`
	SignedAt    *time.Time `db:"signed_at" json:"signedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`

	Items []*Item `db:"-" json:"items"`
}

// Sign records the employee's acknowledgment.
func (e *Entrega) Sign(at time.Time) error {
	if e.Status != StatusPendingSignature {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Delivery has already been signed or closed").
			WithDetail("entrega_id", e.ID.String()).
			WithDetail("status", string(e.Status))
	}
	e.Status = StatusActive
	e.SignedAt = &at
	e.Touch()
	return nil
}

// OpenItems returns the units still with the employee.
func (e *Entrega) OpenItems() []*Item {
	var open []*Item
	for _, it := range e.Items {
		if it.State == StateWithEmployee {
			open = append(open, it)
		}
	}
	return open
}

// RefreshStatus recomputes the aggregate state from the items. It is a
// pure projection: calling it twice in a row changes nothing, and it never
// leaves a cancelled or unsigned delivery.
func (e *Entrega) RefreshStatus() {
	if e.Status == StatusCancelled || e.Status == StatusPendingSignature {
		return
	}

	open := len(e.OpenItems())
	switch {
	case len(e.Items) == 0 || open == len(e.Items):
		e.Status = StatusActive
	case open == 0:
		e.Status = StatusFullyReturned
	default:
		e.Status = StatusPartiallyReturned
	}
}

// Validate implements entity.Validatable.
func (e *Entrega) Validate(ctx context.Context) error {
	if id.IsNil(e.FichaID) {
		return apperror.NewValidation("PPE record is required").WithDetail("field", "fichaId")
	}
	if id.IsNil(e.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(e.Items) == 0 {
		return apperror.NewValidation("delivery requires at least one unit")
	}
	for _, it := range e.Items {
		if id.IsNil(it.EPITypeID) {
			return apperror.NewValidation("EPI type is required").WithDetail("field", "epiTypeId")
		}
	}
	return nil
}

var _ entity.Validatable = (*Entrega)(nil)
