package issuance

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/clock"
	"epitrack/internal/core/entity"
	"epitrack/internal/core/id"
	"epitrack/internal/core/numerator"
	"epitrack/internal/core/tx"
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Service manages the delivery lifecycle: issuing units to employees,
// signature, cancellation and returns.
type Service struct {
	repo    Repository
	fichas  ficha.Repository
	types   epitype.Repository
	ledger  *ledger.Service
	numbers numerator.Generator
	txm     tx.Manager
	clock   clock.Clock
	log     *logger.Logger
}

// NewService creates a delivery service.
func NewService(
	repo Repository,
	fichas ficha.Repository,
	types epitype.Repository,
	ledgerSvc *ledger.Service,
	numbers numerator.Generator,
	txm tx.Manager,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:    repo,
		fichas:  fichas,
		types:   types,
		ledger:  ledgerSvc,
		numbers: numbers,
		txm:     txm,
		clock:   clk,
		log:     log,
	}
}

// IssueLine is one requested (EPI type, unit count) pair.
type IssueLine struct {
	EPITypeID id.ID `json:"epiTypeId"`
	Quantity  int64 `json:"quantity"`
}

// IssueInput carries the fields for a new delivery.
type IssueInput struct {
	FichaID     id.ID       `json:"fichaId"`
	WarehouseID id.ID       `json:"warehouseId"`
	Lines       []IssueLine `json:"lines"`
	Notes       string      `json:"notes,omitempty"`
}

// Issue creates a delivery: it checks the PPE record accepts issuances,
// expands each line into individual unit rows with their return deadlines
// and writes one decreasing ledger entry per unit, batched per line. The
// whole delivery succeeds or fails as one transaction.
func (s *Service) Issue(ctx context.Context, input IssueInput) (*Entrega, error) {
	if len(input.Lines) == 0 {
		return nil, apperror.NewValidation("delivery requires at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, apperror.NewValidation("quantity must be positive").
				WithDetail("epi_type_id", line.EPITypeID.String()).
				WithDetail("quantity", line.Quantity)
		}
	}

	var e *Entrega
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		f, err := s.fichas.GetByID(ctx, input.FichaID)
		if err != nil {
			return err
		}
		if !f.CanReceive() {
			return apperror.NewBusinessRule(apperror.CodeRecordNotActive, "PPE record does not accept issuances").
				WithDetail("ficha_id", f.ID.String()).
				WithDetail("status", string(f.Status))
		}

		now := s.clock.Now()
		e, err = s.buildEntrega(ctx, input, now)
		if err != nil {
			return err
		}

		number, err := s.numbers.NextNumber(ctx, NumberConfig, now)
		if err != nil {
			return err
		}
		e.Number = number

		for _, line := range input.Lines {
			_, err := s.ledger.CreateUnitEntries(ctx, ledger.Movement{
				Kind:            ledger.KindExit,
				WarehouseID:     input.WarehouseID,
				EPITypeID:       line.EPITypeID,
				OriginEntregaID: &e.ID,
			}, line.Quantity)
			if err != nil {
				return err
			}
		}

		return s.repo.Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "equipment issued",
		"entrega_id", e.ID.String(),
		"number", e.Number,
		"ficha_id", e.FichaID.String(),
		"units", len(e.Items),
	)
	return e, nil
}

// buildEntrega expands lines into unit rows and stamps deadlines from the
// EPI types' lifespans.
func (s *Service) buildEntrega(ctx context.Context, input IssueInput, now time.Time) (*Entrega, error) {
	typeIDs := make([]id.ID, 0, len(input.Lines))
	for _, line := range input.Lines {
		typeIDs = append(typeIDs, line.EPITypeID)
	}
	types, err := s.types.GetByIDs(ctx, typeIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[id.ID]*epitype.EPIType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}

	e := &Entrega{
		BaseDocument: entity.NewBaseDocument(),
		FichaID:      input.FichaID,
		WarehouseID:  input.WarehouseID,
		Status:       StatusPendingSignature,
		IssuedAt:     now,
		Notes:        input.Notes,
	}

	for _, line := range input.Lines {
		t, ok := byID[line.EPITypeID]
		if !ok {
			return nil, apperror.NewNotFound("EPI type", line.EPITypeID.String())
		}
		if !t.Active {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "EPI type is inactive").
				WithDetail("epi_type_id", t.ID.String())
		}

		var deadline *time.Time
		if t.HasExpiry() {
			d := now.AddDate(0, 0, t.LifespanDays)
			deadline = &d
		}

		for i := int64(0); i < line.Quantity; i++ {
			e.Items = append(e.Items, &Item{
				ID:             id.New(),
				EntregaID:      e.ID,
				EPITypeID:      line.EPITypeID,
				State:          StateWithEmployee,
				IssuedAt:       now,
				ReturnDeadline: deadline,
			})
		}
	}

	return e, e.Validate(ctx)
}

// Sign records the employee's signature on a pending delivery.
func (s *Service) Sign(ctx context.Context, entregaID id.ID) (*Entrega, error) {
	var e *Entrega
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.GetByIDForUpdate(ctx, entregaID)
		if err != nil {
			return err
		}
		if err := e.Sign(s.clock.Now()); err != nil {
			return err
		}
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery signed", "entrega_id", e.ID.String(), "number", e.Number)
	return e, nil
}

// Cancel voids an unsigned delivery and restores its stock by reversing
// the delivery's ledger entries. Signed deliveries cannot be cancelled;
// units come back through returns instead.
func (s *Service) Cancel(ctx context.Context, entregaID id.ID, reason string) (*Entrega, error) {
	var e *Entrega
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.GetByIDForUpdate(ctx, entregaID)
		if err != nil {
			return err
		}
		if e.Status != StatusPendingSignature {
			return apperror.NewBusinessRule(apperror.CodeCannotCancel, "Only unsigned deliveries can be cancelled").
				WithDetail("entrega_id", e.ID.String()).
				WithDetail("status", string(e.Status))
		}

		entries, err := s.ledger.GetByEntrega(ctx, e.ID)
		if err != nil {
			return err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			if _, err := s.ledger.CreateReversal(ctx, entries[i].ID, reason); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		e.Status = StatusCancelled
		e.CancelledAt = &now
		e.Touch()
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery cancelled", "entrega_id", e.ID.String(), "number", e.Number)
	return e, nil
}

// Get retrieves a delivery with its items.
func (s *Service) Get(ctx context.Context, entregaID id.ID) (*Entrega, error) {
	return s.repo.GetByID(ctx, entregaID)
}

// List returns deliveries matching the filter with a total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Entrega, int64, error) {
	return s.repo.List(ctx, filter)
}

// CountOpenItems implements ficha.OpenItemCounter.
func (s *Service) CountOpenItems(ctx context.Context, fichaID id.ID) (int64, error) {
	return s.repo.CountOpenItems(ctx, fichaID)
}

var _ ficha.OpenItemCounter = (*Service)(nil)
