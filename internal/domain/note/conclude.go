package note

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Conclude applies a draft note to stock. All items are processed inside
// one transaction: any failure (insufficient stock, validation) rolls back
// every ledger entry and leaves the note in draft.
//
// validateStock false waives the insufficient-stock floor for this
// conclusion only, letting a known-correct note (say, a late-entered
// disposal) drive a balance negative even when the global negative-stock
// flag is off.
//
// Per kind:
//   - entry writes one increasing ledger entry per item at the destination
//   - transfer writes an exit at the origin and an entry at the destination
//   - disposal writes one decreasing entry per item at the origin
//   - adjustment sets each item's counted value at the destination; items
//     whose count already matches are skipped, not failed
func (s *Service) Conclude(ctx context.Context, noteID id.ID, validateStock bool) (*Note, error) {
	var n *Note
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if err := n.Validate(ctx); err != nil {
			return err
		}
		if err := n.MarkConcluded(s.clock.Now()); err != nil {
			return err
		}

		if err := s.applyItems(ctx, n, validateStock); err != nil {
			return err
		}

		return s.repo.Update(ctx, n)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "note concluded",
		"note_id", n.ID.String(),
		"number", n.Number,
		"kind", string(n.Kind),
		"items", len(n.Items),
	)
	return n, nil
}

func (s *Service) applyItems(ctx context.Context, n *Note, validateStock bool) error {
	switch n.Kind {
	case KindEntry:
		return s.applyEntry(ctx, n)
	case KindTransfer:
		return s.applyTransfer(ctx, n, validateStock)
	case KindDisposal:
		return s.applyDisposal(ctx, n, validateStock)
	case KindAdjustment:
		return s.applyAdjustment(ctx, n)
	}
	return apperror.NewValidation("unknown note kind").WithDetail("kind", string(n.Kind))
}

func (s *Service) applyEntry(ctx context.Context, n *Note) error {
	for _, it := range n.Items {
		_, err := s.ledger.CreateEntry(ctx, ledger.Movement{
			Kind:         ledger.KindEntry,
			WarehouseID:  *n.DestWarehouseID,
			EPITypeID:    it.EPITypeID,
			Quantity:     it.Quantity,
			OriginNoteID: &n.ID,
		})
		if err != nil {
			return err
		}
		it.ProcessedQuantity = it.Quantity
	}
	return nil
}

func (s *Service) applyTransfer(ctx context.Context, n *Note, validateStock bool) error {
	for _, it := range n.Items {
		_, err := s.ledger.CreateEntry(ctx, ledger.Movement{
			Kind:           ledger.KindTransfer,
			WarehouseID:    *n.OriginWarehouseID,
			EPITypeID:      it.EPITypeID,
			Quantity:       it.Quantity,
			OriginNoteID:   &n.ID,
			SkipStockCheck: !validateStock,
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.CreateEntry(ctx, ledger.Movement{
			Kind:         ledger.KindEntry,
			WarehouseID:  *n.DestWarehouseID,
			EPITypeID:    it.EPITypeID,
			Quantity:     it.Quantity,
			OriginNoteID: &n.ID,
		})
		if err != nil {
			return err
		}
		it.ProcessedQuantity = it.Quantity
	}
	return nil
}

func (s *Service) applyDisposal(ctx context.Context, n *Note, validateStock bool) error {
	for _, it := range n.Items {
		_, err := s.ledger.CreateEntry(ctx, ledger.Movement{
			Kind:           ledger.KindDisposal,
			WarehouseID:    *n.OriginWarehouseID,
			EPITypeID:      it.EPITypeID,
			Quantity:       it.Quantity,
			OriginNoteID:   &n.ID,
			SkipStockCheck: !validateStock,
		})
		if err != nil {
			return err
		}
		it.ProcessedQuantity = it.Quantity
	}
	return nil
}

func (s *Service) applyAdjustment(ctx context.Context, n *Note) error {
	for _, it := range n.Items {
		e, err := s.ledger.CreateAdjustment(ctx, *n.DestWarehouseID, it.EPITypeID, it.Quantity, &n.ID, n.Notes)
		if err != nil {
			// A count that already matches the balance is not a failure
			// for the note as a whole; the line just applies nothing.
			if apperror.IsCode(err, apperror.CodeNothingToAdjust) {
				it.ProcessedQuantity = 0
				continue
			}
			return err
		}
		// Record the applied delta magnitude, not the counted value.
		delta := e.SignedQuantity()
		if delta < 0 {
			delta = -delta
		}
		it.ProcessedQuantity = delta
	}
	return nil
}
