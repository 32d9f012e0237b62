package note

import (
	"context"

	"epitrack/internal/core/clock"
	"epitrack/internal/core/id"
	"epitrack/internal/core/numerator"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Service manages the movement-note lifecycle: draft editing, conclusion
// (applying stock effects) and cancellation (reversing them).
type Service struct {
	repo     Repository
	ledger   *ledger.Service
	numbers  numerator.Generator
	txm      tx.Manager
	settings settings.Provider
	clock    clock.Clock
	log      *logger.Logger
}

// NewService creates a note service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	numbers numerator.Generator,
	txm tx.Manager,
	settings settings.Provider,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledgerSvc,
		numbers:  numbers,
		txm:      txm,
		settings: settings,
		clock:    clk,
		log:      log,
	}
}

// CreateDraftInput carries the fields for a new draft note.
type CreateDraftInput struct {
	Kind              NoteKind
	OriginWarehouseID *id.ID
	DestWarehouseID   *id.ID
	Notes             string
}

// CreateDraft creates a draft note with an auto-generated number.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (*Note, error) {
	n, err := New(input.Kind, input.OriginWarehouseID, input.DestWarehouseID)
	if err != nil {
		return nil, err
	}
	n.Notes = input.Notes
	n.IssueDate = s.clock.Now()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numbers.NextNumber(ctx, n.Kind.NumberConfig(), n.IssueDate)
		if err != nil {
			return err
		}
		n.Number = number
		return s.repo.Create(ctx, n)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "note draft created",
		"note_id", n.ID.String(),
		"number", n.Number,
		"kind", string(n.Kind),
	)
	return n, nil
}

// Get retrieves a note with its items.
func (s *Service) Get(ctx context.Context, noteID id.ID) (*Note, error) {
	return s.repo.GetByID(ctx, noteID)
}

// GetByNumber retrieves a note by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Note, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns notes matching the filter with a total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Note, int64, error) {
	return s.repo.List(ctx, filter)
}

// AddItem appends a line to a draft note.
func (s *Service) AddItem(ctx context.Context, noteID, epiTypeID id.ID, quantity int64, unitCost types.Money) (*Note, error) {
	return s.mutateDraft(ctx, noteID, func(n *Note) error {
		_, err := n.AddItem(epiTypeID, quantity, unitCost)
		return err
	})
}

// UpdateItemQuantity changes a line's quantity on a draft note.
func (s *Service) UpdateItemQuantity(ctx context.Context, noteID, itemID id.ID, quantity int64) (*Note, error) {
	return s.mutateDraft(ctx, noteID, func(n *Note) error {
		return n.UpdateItemQuantity(itemID, quantity)
	})
}

// RemoveItem deletes a line from a draft note.
func (s *Service) RemoveItem(ctx context.Context, noteID, itemID id.ID) (*Note, error) {
	return s.mutateDraft(ctx, noteID, func(n *Note) error {
		return n.RemoveItem(itemID)
	})
}

// UpdateNotes changes the free-text annotation on a draft note.
func (s *Service) UpdateNotes(ctx context.Context, noteID id.ID, notes string) (*Note, error) {
	return s.mutateDraft(ctx, noteID, func(n *Note) error {
		if err := n.requireDraft(); err != nil {
			return err
		}
		n.Notes = notes
		n.Touch()
		return nil
	})
}

// mutateDraft loads the note under lock, applies fn and persists the result.
func (s *Service) mutateDraft(ctx context.Context, noteID id.ID, fn func(n *Note) error) (*Note, error) {
	var n *Note
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		return s.repo.Update(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}
