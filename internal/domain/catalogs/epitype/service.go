package epitype

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
	"epitrack/pkg/logger"
)

// Service manages the EPI type catalog.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates an EPI type service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateInput carries the fields for a new EPI type.
type CreateInput struct {
	Name         string
	Description  string
	CANumber     string
	LifespanDays int
	WarningDays  int
	UnitCost     types.Money
}

// Create registers a new EPI type. CA numbers are unique when present.
func (s *Service) Create(ctx context.Context, input CreateInput) (*EPIType, error) {
	t := New(input.Name, input.CANumber, input.LifespanDays, input.WarningDays, input.UnitCost)
	t.Description = input.Description
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	if t.CANumber != "" {
		existing, err := s.repo.GetByCANumber(ctx, t.CANumber)
		if err != nil && !apperror.IsNotFound(err) {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.NewDuplicate("EPI type", "CA number", t.CANumber)
		}
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.Info(ctx, "EPI type created", "epi_type_id", t.ID.String(), "name", t.Name, "ca_number", t.CANumber)
	return t, nil
}

// UpdateInput carries mutable EPI type fields.
type UpdateInput struct {
	Name         *string
	Description  *string
	LifespanDays *int
	WarningDays  *int
	UnitCost     *types.Money
}

// Update changes EPI type fields. The CA number is immutable.
func (s *Service) Update(ctx context.Context, epiTypeID id.ID, input UpdateInput) (*EPIType, error) {
	t, err := s.repo.GetByID(ctx, epiTypeID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.LifespanDays != nil {
		t.LifespanDays = *input.LifespanDays
	}
	if input.WarningDays != nil {
		t.WarningDays = *input.WarningDays
	}
	if input.UnitCost != nil {
		t.UnitCost = *input.UnitCost
	}
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	t.Touch()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Deactivate soft-deletes an EPI type. Stock history remains.
func (s *Service) Deactivate(ctx context.Context, epiTypeID id.ID) error {
	t, err := s.repo.GetByID(ctx, epiTypeID)
	if err != nil {
		return err
	}
	if !t.Active {
		return nil
	}
	t.Active = false
	t.Touch()
	return s.repo.Update(ctx, t)
}

// Get retrieves an EPI type.
func (s *Service) Get(ctx context.Context, epiTypeID id.ID) (*EPIType, error) {
	return s.repo.GetByID(ctx, epiTypeID)
}

// GetMany retrieves EPI types by ID, erroring on any missing one.
func (s *Service) GetMany(ctx context.Context, epiTypeIDs []id.ID) (map[id.ID]*EPIType, error) {
	list, err := s.repo.GetByIDs(ctx, epiTypeIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[id.ID]*EPIType, len(list))
	for _, t := range list {
		byID[t.ID] = t
	}
	for _, want := range epiTypeIDs {
		if _, ok := byID[want]; !ok {
			return nil, apperror.NewNotFound("EPI type", want.String())
		}
	}
	return byID, nil
}

// List returns EPI types matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*EPIType, error) {
	return s.repo.List(ctx, filter)
}
