package note

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Cancel cancels a note. Drafts cancel without any stock effect. Concluded
// notes have each of their ledger entries reversed first, inside the same
// transaction, so cancellation restores exactly the balances the
// conclusion changed. A note whose entries were already reversed
// individually cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, noteID id.ID, reason string) (*Note, error) {
	var n *Note
	var wasConcluded bool
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}

		wasConcluded = n.Status == StatusConcluded
		if err := n.MarkCancelled(s.clock.Now(), reason); err != nil {
			return err
		}

		if wasConcluded {
			if err := s.reverseEntries(ctx, n, reason); err != nil {
				return err
			}
		}

		return s.repo.Update(ctx, n)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "note cancelled",
		"note_id", n.ID.String(),
		"number", n.Number,
		"was_concluded", wasConcluded,
	)
	return n, nil
}

// reverseEntries writes a compensating entry for each ledger entry the
// note produced, in reverse creation order so a transfer's destination leg
// unwinds before its origin leg. A concluded note with no entries cannot
// be cancelled: there is nothing to reverse and silently flipping the
// status would break the stock-restoration guarantee.
func (s *Service) reverseEntries(ctx context.Context, n *Note, reason string) error {
	entries, err := s.ledger.GetByNote(ctx, n.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return apperror.NewBusinessRule(apperror.CodeCannotCancel, "Note has no ledger entries to reverse").
			WithDetail("note_id", n.ID.String())
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind == ledger.KindReversal {
			return apperror.NewBusinessRule(apperror.CodeCannotCancel, "Note entries have already been reversed").
				WithDetail("note_id", n.ID.String()).
				WithDetail("entry_id", e.ID.String())
		}
		if _, err := s.ledger.CreateReversal(ctx, e.ID, reason); err != nil {
			return err
		}
	}
	return nil
}

// CancellationImpact describes what cancelling a note would do to stock.
type CancellationImpact struct {
	NoteID     id.ID              `json:"noteId"`
	Cancelable bool               `json:"cancelable"`
	Reason     string             `json:"reason,omitempty"`
	Changes    []CancellationStep `json:"changes"`
}

// CancellationStep is one balance change a cancellation would apply.
type CancellationStep struct {
	WarehouseID id.ID `json:"warehouseId"`
	EPITypeID   id.ID `json:"epiTypeId"`
	Delta       int64 `json:"delta"`
}

// PreviewCancellation reports, without mutating anything, whether a note
// can be cancelled and which balance changes that would apply.
func (s *Service) PreviewCancellation(ctx context.Context, noteID id.ID) (*CancellationImpact, error) {
	n, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	impact := &CancellationImpact{NoteID: n.ID}

	if !n.IsCancelable() {
		impact.Reason = "note is already cancelled"
		return impact, nil
	}
	impact.Cancelable = true

	if n.Status == StatusDraft {
		return impact, nil
	}

	entries, err := s.ledger.GetByNote(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		impact.Cancelable = false
		impact.Reason = "note has no ledger entries to reverse"
		return impact, nil
	}
	for _, e := range entries {
		if e.Kind == ledger.KindReversal {
			impact.Cancelable = false
			impact.Reason = "note entries have already been reversed"
			impact.Changes = nil
			return impact, nil
		}
		impact.Changes = append(impact.Changes, CancellationStep{
			WarehouseID: e.WarehouseID,
			EPITypeID:   e.EPITypeID,
			Delta:       -e.SignedQuantity(),
		})
	}
	return impact, nil
}
