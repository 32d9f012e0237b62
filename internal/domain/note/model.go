// Package note provides movement notes: the documents through which stock
// enters, leaves and moves between warehouses. A note is edited as a draft
// and takes effect only when concluded, at which point it writes ledger
// entries atomically for all of its items.
package note

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
	"epitrack/internal/core/numerator"
	"epitrack/internal/core/types"
)

// NoteKind determines how a note moves stock when concluded.
type NoteKind string

const (
	// KindEntry brings stock into the destination warehouse
	KindEntry NoteKind = "entry"
	// KindTransfer moves stock from origin to destination
	KindTransfer NoteKind = "transfer"
	// KindDisposal removes stock from the origin warehouse (descarte)
	KindDisposal NoteKind = "disposal"
	// KindAdjustment sets counted quantities in the destination warehouse
	KindAdjustment NoteKind = "adjustment"
)

// Valid reports whether k is a known note kind.
func (k NoteKind) Valid() bool {
	switch k {
	case KindEntry, KindTransfer, KindDisposal, KindAdjustment:
		return true
	}
	return false
}

// NumberConfig returns the auto-numbering configuration for the kind.
func (k NoteKind) NumberConfig() numerator.Config {
	switch k {
	case KindEntry:
		return numerator.DefaultConfig("ENT")
	case KindTransfer:
		return numerator.DefaultConfig("TRF")
	case KindDisposal:
		return numerator.DefaultConfig("DSC")
	case KindAdjustment:
		return numerator.DefaultConfig("ADJ")
	}
	return numerator.DefaultConfig("MOV")
}

// Status is the note lifecycle state.
type Status string

const (
	// StatusDraft is editable and has no stock effect
	StatusDraft Status = "draft"
	// StatusConcluded has been applied to stock and is immutable
	StatusConcluded Status = "concluded"
	// StatusCancelled is terminal; a cancelled concluded note has had its
	// stock effects reversed
	StatusCancelled Status = "cancelled"
)

// Item is one line of a movement note.
type Item struct {
	ID        id.ID `db:"id" json:"id"`
	NoteID    id.ID `db:"note_id" json:"noteId"`
	EPITypeID id.ID `db:"epi_type_id" json:"epiTypeId"`

	// Quantity is the amount to move. For adjustment notes it is the
	// counted absolute value instead, and may be zero.
	Quantity int64 `db:"quantity" json:"quantity"`

	// UnitCost is informational (receipt valuation); stock math is unit-based.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// ProcessedQuantity is the amount actually applied at conclusion.
	// Zero while the note is a draft.
	ProcessedQuantity int64 `db:"processed_quantity" json:"processedQuantity"`
}

// Note is a stock movement document.
type Note struct {
	entity.BaseDocument

	Number string   `db:"number" json:"number"`
	Kind   NoteKind `db:"kind" json:"kind"`
	Status Status   `db:"status" json:"status"`

	// OriginWarehouseID is required for transfer and disposal notes.
	OriginWarehouseID *id.ID `db:"origin_warehouse_id" json:"originWarehouseId,omitempty"`

	// DestWarehouseID is required for entry, transfer and adjustment notes.
	DestWarehouseID *id.ID `db:"dest_warehouse_id" json:"destWarehouseId,omitempty"`

	IssueDate time.Time `db:"issue_date" json:"issueDate"`
	Notes     string    `db:"notes" json:"notes,omitempty"`

	ConcludedAt  *time.Time `db:"concluded_at" json:"concludedAt,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason string     `db:"cancel_reason" json:"cancelReason,omitempty"`

	Items []*Item `db:"-" json:"items"`
}

// New creates a draft note, validating the warehouse combination for the
// kind up front so an invalid note cannot even be saved as a draft.
func New(kind NoteKind, originWarehouseID, destWarehouseID *id.ID) (*Note, error) {
	n := &Note{
		BaseDocument:      entity.NewBaseDocument(),
		Kind:              kind,
		Status:            StatusDraft,
		OriginWarehouseID: originWarehouseID,
		DestWarehouseID:   destWarehouseID,
		IssueDate:         time.Now().UTC(),
	}
	if err := n.validateWarehouses(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Note) validateWarehouses() error {
	if !n.Kind.Valid() {
		return apperror.NewValidation("unknown note kind").WithDetail("kind", string(n.Kind))
	}

	hasOrigin := n.OriginWarehouseID != nil && !id.IsNil(*n.OriginWarehouseID)
	hasDest := n.DestWarehouseID != nil && !id.IsNil(*n.DestWarehouseID)

	switch n.Kind {
	case KindEntry, KindAdjustment:
		if !hasDest {
			return apperror.NewValidation("destination warehouse is required").WithDetail("field", "destWarehouseId")
		}
		if hasOrigin {
			return apperror.NewValidation("origin warehouse is not allowed for this note kind").WithDetail("kind", string(n.Kind))
		}
	case KindDisposal:
		if !hasOrigin {
			return apperror.NewValidation("origin warehouse is required").WithDetail("field", "originWarehouseId")
		}
		if hasDest {
			return apperror.NewValidation("destination warehouse is not allowed for this note kind").WithDetail("kind", string(n.Kind))
		}
	case KindTransfer:
		if !hasOrigin || !hasDest {
			return apperror.NewValidation("transfer requires both origin and destination warehouses")
		}
		if *n.OriginWarehouseID == *n.DestWarehouseID {
			return apperror.NewValidation("origin and destination warehouses must differ").
				WithDetail("warehouse_id", n.OriginWarehouseID.String())
		}
	}

	return nil
}

// CanEdit reports whether the note's items may still change.
func (n *Note) CanEdit() bool {
	return n.Status == StatusDraft
}

func (n *Note) requireDraft() error {
	if !n.CanEdit() {
		return apperror.NewBusinessRule(apperror.CodeInvalidNoteState, "Only draft notes can be modified").
			WithDetail("note_id", n.ID.String()).
			WithDetail("status", string(n.Status))
	}
	return nil
}

// AddItem appends a line to a draft note. Each EPI type may appear at
// most once per note.
func (n *Note) AddItem(epiTypeID id.ID, quantity int64, unitCost types.Money) (*Item, error) {
	if err := n.requireDraft(); err != nil {
		return nil, err
	}
	if id.IsNil(epiTypeID) {
		return nil, apperror.NewValidation("EPI type is required").WithDetail("field", "epiTypeId")
	}
	if err := n.validateItemQuantity(quantity); err != nil {
		return nil, err
	}

	for _, it := range n.Items {
		if it.EPITypeID == epiTypeID {
			return nil, apperror.NewBusinessRule(apperror.CodeDuplicateItem, "EPI type already present on this note").
				WithDetail("epi_type_id", epiTypeID.String())
		}
	}

	item := &Item{
		ID:        id.New(),
		NoteID:    n.ID,
		EPITypeID: epiTypeID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	}
	n.Items = append(n.Items, item)
	n.Touch()
	return item, nil
}

// UpdateItemQuantity changes a line's quantity on a draft note.
func (n *Note) UpdateItemQuantity(itemID id.ID, quantity int64) error {
	if err := n.requireDraft(); err != nil {
		return err
	}
	if err := n.validateItemQuantity(quantity); err != nil {
		return err
	}

	for _, it := range n.Items {
		if it.ID == itemID {
			it.Quantity = quantity
			n.Touch()
			return nil
		}
	}
	return apperror.NewNotFound("note item", itemID.String())
}

// RemoveItem deletes a line from a draft note.
func (n *Note) RemoveItem(itemID id.ID) error {
	if err := n.requireDraft(); err != nil {
		return err
	}

	for i, it := range n.Items {
		if it.ID == itemID {
			n.Items = append(n.Items[:i], n.Items[i+1:]...)
			n.Touch()
			return nil
		}
	}
	return apperror.NewNotFound("note item", itemID.String())
}

func (n *Note) validateItemQuantity(quantity int64) error {
	// Adjustment items carry the counted absolute value, which may be zero.
	if n.Kind == KindAdjustment {
		if quantity < 0 {
			return apperror.NewValidation("counted quantity cannot be negative").WithDetail("quantity", quantity)
		}
		return nil
	}
	if quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", quantity)
	}
	return nil
}

// MarkConcluded transitions draft to concluded.
func (n *Note) MarkConcluded(at time.Time) error {
	if n.Status != StatusDraft {
		return apperror.NewBusinessRule(apperror.CodeInvalidNoteState, "Only draft notes can be concluded").
			WithDetail("note_id", n.ID.String()).
			WithDetail("status", string(n.Status))
	}
	if len(n.Items) == 0 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Cannot conclude a note without items").
			WithDetail("note_id", n.ID.String())
	}

	n.Status = StatusConcluded
	n.ConcludedAt = &at
	n.Touch()
	return nil
}

// IsCancelable reports whether MarkCancelled would succeed.
// Drafts cancel freely; concluded notes cancel only through the reversal
// flow, which reverses their ledger entries first.
func (n *Note) IsCancelable() bool {
	return n.Status == StatusDraft || n.Status == StatusConcluded
}

// MarkCancelled transitions the note to cancelled.
func (n *Note) MarkCancelled(at time.Time, reason string) error {
	if !n.IsCancelable() {
		return apperror.NewBusinessRule(apperror.CodeCannotCancel, "Note is already cancelled").
			WithDetail("note_id", n.ID.String())
	}

	n.Status = StatusCancelled
	n.CancelledAt = &at
	n.CancelReason = reason
	n.Touch()
	return nil
}

// Validate implements entity.Validatable.
func (n *Note) Validate(ctx context.Context) error {
	if err := n.validateWarehouses(); err != nil {
		return err
	}
	seen := make(map[id.ID]bool, len(n.Items))
	for _, it := range n.Items {
		if id.IsNil(it.EPITypeID) {
			return apperror.NewValidation("EPI type is required").WithDetail("field", "epiTypeId")
		}
		if seen[it.EPITypeID] {
			return apperror.NewBusinessRule(apperror.CodeDuplicateItem, "EPI type already present on this note").
				WithDetail("epi_type_id", it.EPITypeID.String())
		}
		seen[it.EPITypeID] = true
		if err := n.validateItemQuantity(it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

var _ entity.Validatable = (*Note)(nil)
