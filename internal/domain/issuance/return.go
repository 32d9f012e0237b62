package issuance

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/balance"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// ReturnClassification says what condition a unit came back in.
type ReturnClassification string

const (
	// ReturnUsable routes the unit to quarantine pending inspection
	ReturnUsable ReturnClassification = "usable"
	// ReturnDamaged routes the unit straight to discarded stock
	ReturnDamaged ReturnClassification = "damaged"
	// ReturnLost records the unit as never coming back; no stock change
	ReturnLost ReturnClassification = "lost"
)

// Valid reports whether c is a known classification.
func (c ReturnClassification) Valid() bool {
	switch c {
	case ReturnUsable, ReturnDamaged, ReturnLost:
		return true
	}
	return false
}

// itemState maps the classification to the unit's final state.
func (c ReturnClassification) itemState() ItemState {
	switch c {
	case ReturnUsable:
		return StateReturned
	case ReturnDamaged:
		return StateDamaged
	case ReturnLost:
		return StateLost
	}
	return ""
}

// stockDestination returns the balance row a returning unit lands in, and
// whether it lands anywhere at all.
func (c ReturnClassification) stockDestination() (balance.ItemStatus, bool) {
	switch c {
	case ReturnUsable:
		return balance.StatusQuarantine, true
	case ReturnDamaged:
		return balance.StatusDiscarded, true
	}
	return "", false
}

// ReturnItem classifies one returning unit.
type ReturnItem struct {
	ItemID         id.ID                `json:"itemId"`
	Classification ReturnClassification `json:"classification"`
	Notes          string               `json:"notes,omitempty"`
}

// ReturnInput carries the units coming back from one delivery. A worker
// handing in several items at once is a single return.
type ReturnInput struct {
	EntregaID id.ID        `json:"entregaId"`
	Items     []ReturnItem `json:"items"`
}

// ProcessReturn closes out issued units. Usable units enter the
// warehouse's quarantine row and damaged units its discarded row, each
// with a ledger entry; lost units change no stock. All units are processed
// in one transaction and the delivery's aggregate status is recomputed
// once, after the last of them.
func (s *Service) ProcessReturn(ctx context.Context, input ReturnInput) (*Entrega, error) {
	if len(input.Items) == 0 {
		return nil, apperror.NewValidation("return requires at least one item")
	}
	for _, ret := range input.Items {
		if !ret.Classification.Valid() {
			return nil, apperror.NewValidation("unknown return classification").
				WithDetail("item_id", ret.ItemID.String()).
				WithDetail("classification", string(ret.Classification))
		}
	}

	var e *Entrega
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.GetByIDForUpdate(ctx, input.EntregaID)
		if err != nil {
			return err
		}

		if e.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Cancelled deliveries have no units to return").
				WithDetail("entrega_id", e.ID.String())
		}
		if e.Status == StatusPendingSignature {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Delivery must be signed before units can be returned").
				WithDetail("entrega_id", e.ID.String())
		}

		now := s.clock.Now()
		for _, ret := range input.Items {
			item := findItem(e, ret.ItemID)
			if item == nil {
				return apperror.NewNotFound("delivery item", ret.ItemID.String())
			}
			if item.State.Closed() {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Unit has already been returned").
					WithDetail("item_id", item.ID.String()).
					WithDetail("state", string(item.State))
			}

			if status, hasStock := ret.Classification.stockDestination(); hasStock {
				_, err := s.ledger.CreateEntry(ctx, ledger.Movement{
					Kind:            ledger.KindEntry,
					WarehouseID:     e.WarehouseID,
					EPITypeID:       item.EPITypeID,
					Status:          status,
					Quantity:        1,
					OriginEntregaID: &e.ID,
					Notes:           ret.Notes,
				})
				if err != nil {
					return err
				}
			}

			item.State = ret.Classification.itemState()
			item.ReturnedAt = &now
			item.ReturnNotes = ret.Notes
		}

		e.RefreshStatus()
		e.Touch()
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "units returned",
		"entrega_id", e.ID.String(),
		"units", len(input.Items),
		"entrega_status", string(e.Status),
	)
	return e, nil
}

func findItem(e *Entrega, itemID id.ID) *Item {
	for _, it := range e.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}
