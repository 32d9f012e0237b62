package ficha

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/pkg/logger"
)

// OpenItemCounter reports how many issued units an employee still holds.
// Implemented by the issuance domain; used to refuse archiving a record
// with equipment outstanding.
type OpenItemCounter interface {
	CountOpenItems(ctx context.Context, fichaID id.ID) (int64, error)
}

// Service manages employee PPE records.
type Service struct {
	repo      Repository
	openItems OpenItemCounter
	log       *logger.Logger
}

// NewService creates a PPE record service.
func NewService(repo Repository, openItems OpenItemCounter, log *logger.Logger) *Service {
	return &Service{repo: repo, openItems: openItems, log: log}
}

// CreateInput carries the fields for a new PPE record.
type CreateInput struct {
	EmployeeName         string
	EmployeeRegistration string
	Department           string
	JobTitle             string
}

// Create registers a PPE record. Employee registrations are unique.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Ficha, error) {
	f := New(input.EmployeeName, input.EmployeeRegistration, input.Department, input.JobTitle)
	if err := f.Validate(ctx); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByRegistration(ctx, f.EmployeeRegistration)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("PPE record", "employee registration", f.EmployeeRegistration)
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	logger.Info(ctx, "PPE record created", "ficha_id", f.ID.String(), "registration", f.EmployeeRegistration)
	return f, nil
}

// Get retrieves a PPE record.
func (s *Service) Get(ctx context.Context, fichaID id.ID) (*Ficha, error) {
	return s.repo.GetByID(ctx, fichaID)
}

// List returns PPE records matching the filter with a total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Ficha, int64, error) {
	return s.repo.List(ctx, filter)
}

// Suspend blocks new issuances on the record.
func (s *Service) Suspend(ctx context.Context, fichaID id.ID) (*Ficha, error) {
	return s.transition(ctx, fichaID, (*Ficha).Suspend)
}

// Reactivate re-enables issuances on a suspended record.
func (s *Service) Reactivate(ctx context.Context, fichaID id.ID) (*Ficha, error) {
	return s.transition(ctx, fichaID, (*Ficha).Reactivate)
}

// Archive closes the record. Refused while the employee still holds
// issued equipment.
func (s *Service) Archive(ctx context.Context, fichaID id.ID) (*Ficha, error) {
	f, err := s.repo.GetByID(ctx, fichaID)
	if err != nil {
		return nil, err
	}

	open, err := s.openItems.CountOpenItems(ctx, fichaID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Cannot archive a PPE record with equipment outstanding").
			WithDetail("ficha_id", fichaID.String()).
			WithDetail("open_items", open)
	}

	f.Archive()
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	logger.Info(ctx, "PPE record archived", "ficha_id", f.ID.String())
	return f, nil
}

func (s *Service) transition(ctx context.Context, fichaID id.ID, fn func(*Ficha) error) (*Ficha, error) {
	f, err := s.repo.GetByID(ctx, fichaID)
	if err != nil {
		return nil, err
	}
	if err := fn(f); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
