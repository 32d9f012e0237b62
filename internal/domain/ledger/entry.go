// Package ledger provides the immutable stock-movement ledger.
// Every quantity change in a warehouse is recorded as an Entry carrying the
// balance before and after the change, so the full history of any
// (warehouse, EPI type) pair can be replayed and audited.
package ledger

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/balance"
)

// Kind classifies a ledger entry by the operation that produced it.
type Kind string

const (
	// KindEntry increases stock (receipt into a warehouse)
	KindEntry Kind = "entry"
	// KindExit decreases stock (issuance to an employee)
	KindExit Kind = "exit"
	// KindTransfer decreases stock at the origin leg of a transfer;
	// the destination leg is recorded as KindEntry
	KindTransfer Kind = "transfer"
	// KindDisposal decreases stock (descarte)
	KindDisposal Kind = "disposal"
	// KindAdjustment corrects stock to a counted value, in either direction
	KindAdjustment Kind = "adjustment"
	// KindReversal compensates a prior entry (estorno)
	KindReversal Kind = "reversal"
)

// Kinds lists every movement kind. Reversal dispatch tables and tests
// iterate this slice so a new kind cannot be added silently.
var Kinds = []Kind{KindEntry, KindExit, KindTransfer, KindDisposal, KindAdjustment, KindReversal}

// Valid reports whether k is a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEntry, KindExit, KindTransfer, KindDisposal, KindAdjustment, KindReversal:
		return true
	}
	return false
}

// Consumes reports whether the kind removes quantity from its warehouse.
func (k Kind) Consumes() bool {
	switch k {
	case KindExit, KindTransfer, KindDisposal:
		return true
	case KindEntry, KindAdjustment, KindReversal:
		return false
	}
	return false
}

// Entry is one immutable row of the stock-movement ledger.
// Entries are never updated or deleted; reversals are recorded as new
// entries pointing back at the original.
type Entry struct {
	ID          id.ID              `db:"id" json:"id"`
	WarehouseID id.ID              `db:"warehouse_id" json:"warehouseId"`
	EPITypeID   id.ID              `db:"epi_type_id" json:"epiTypeId"`
	Status      balance.ItemStatus `db:"item_status" json:"itemStatus"`

	Kind Kind `db:"kind" json:"kind"`

	// Quantity is always stored positive; direction comes from Kind
	// (and, for adjustments and reversals, from the before/after pair).
	Quantity int64 `db:"quantity" json:"quantity"`

	BalanceBefore int64 `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  int64 `db:"balance_after" json:"balanceAfter"`

	// OriginNoteID links the entry to the movement note that produced it
	OriginNoteID *id.ID `db:"origin_note_id" json:"originNoteId,omitempty"`

	// OriginEntregaID links unit-level issuance entries to their entrega
	OriginEntregaID *id.ID `db:"origin_entrega_id" json:"originEntregaId,omitempty"`

	// ReversalOfEntryID is set only on reversal entries
	ReversalOfEntryID *id.ID `db:"reversal_of_entry_id" json:"reversalOfEntryId,omitempty"`

	ActorUserID string `db:"actor_user_id" json:"actorUserId"`
	Notes       string `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQuantity returns the entry's effect on its balance row.
// It is derived from the recorded before/after pair, which makes it exact
// for every kind including adjustments (either direction) and reversals.
func (e *Entry) SignedQuantity() int64 {
	return e.BalanceAfter - e.BalanceBefore
}

// Reversible reports whether the entry may be compensated by an estorno.
// Reversal entries themselves are never reversible; whether the entry has
// already been reversed is a repository question (see Repository.HasReversal).
func (e *Entry) Reversible() bool {
	return e.Kind != KindReversal
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if id.IsNil(e.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(e.EPITypeID) {
		return apperror.NewValidation("EPI type is required").WithDetail("field", "epiTypeId")
	}
	if e.ActorUserID == "" {
		return apperror.NewValidation("actor user is required").WithDetail("field", "actorUserId")
	}
	if !e.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").WithDetail("kind", string(e.Kind))
	}
	if e.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", e.Quantity)
	}

	delta := e.SignedQuantity()
	if delta != e.Quantity && delta != -e.Quantity {
		return apperror.NewValidation("balance delta does not match quantity").
			WithDetail("quantity", e.Quantity).
			WithDetail("balanceBefore", e.BalanceBefore).
			WithDetail("balanceAfter", e.BalanceAfter)
	}

	switch e.Kind {
	case KindEntry:
		if delta != e.Quantity {
			return apperror.NewValidation("entry must increase balance")
		}
	case KindExit, KindTransfer, KindDisposal:
		if delta != -e.Quantity {
			return apperror.NewValidation("consuming movement must decrease balance")
		}
	case KindReversal:
		if e.ReversalOfEntryID == nil || id.IsNil(*e.ReversalOfEntryID) {
			return apperror.NewValidation("reversal must reference the original entry").
				WithDetail("field", "reversalOfEntryId")
		}
	case KindAdjustment:
		// Either direction is fine; the before/after pair carries the sign.
	}

	return nil
}

// newEntry builds an entry from a known balance-before and the kind's sign.
// Valid for all kinds except adjustment and reversal.
func newEntry(kind Kind, warehouseID, epiTypeID id.ID, qty, balanceBefore int64, actorUserID string) (*Entry, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	after := balanceBefore + qty
	if kind.Consumes() {
		after = balanceBefore - qty
	}

	return &Entry{
		ID:            id.New(),
		WarehouseID:   warehouseID,
		EPITypeID:     epiTypeID,
		Status:        balance.StatusAvailable,
		Kind:          kind,
		Quantity:      qty,
		BalanceBefore: balanceBefore,
		BalanceAfter:  after,
		ActorUserID:   actorUserID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// newAdjustmentEntry builds an adjustment row targeting an absolute balance.
func newAdjustmentEntry(warehouseID, epiTypeID id.ID, balanceBefore, balanceAfter int64, actorUserID string) (*Entry, error) {
	if balanceAfter < 0 {
		return nil, apperror.NewValidation("target quantity cannot be negative").
			WithDetail("target", balanceAfter)
	}
	delta := balanceAfter - balanceBefore
	if delta == 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeNothingToAdjust, "Current quantity already matches the counted value")
	}
	qty := delta
	if qty < 0 {
		qty = -qty
	}

	return &Entry{
		ID:            id.New(),
		WarehouseID:   warehouseID,
		EPITypeID:     epiTypeID,
		Status:        balance.StatusAvailable,
		Kind:          KindAdjustment,
		Quantity:      qty,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ActorUserID:   actorUserID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// newReversalEntry builds the compensating row for original.
// The reversal applies the inverse of the original's signed effect to the
// current balance of the same (warehouse, EPI type, status) row.
func newReversalEntry(original *Entry, balanceBefore int64, actorUserID, notes string) (*Entry, error) {
	if !original.Reversible() {
		return nil, apperror.NewBusinessRule(apperror.CodeCannotReverse, "A reversal entry cannot itself be reversed").
			WithDetail("entry_id", original.ID.String())
	}

	origID := original.ID
	return &Entry{
		ID:          id.New(),
		WarehouseID: original.WarehouseID,
		EPITypeID:   original.EPITypeID,
		Status:      original.Status,
		Kind:        KindReversal,
		Quantity:    original.Quantity,

		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore - original.SignedQuantity(),

		// The compensating row belongs to the same originating document,
		// so document-level queries see their estornos too.
		OriginNoteID:    original.OriginNoteID,
		OriginEntregaID: original.OriginEntregaID,

		ReversalOfEntryID: &origID,
		ActorUserID:       actorUserID,
		Notes:             notes,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

var _ entity.Validatable = (*Entry)(nil)
