package warehouse

import (
	"context"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/pkg/logger"
)

// Service manages the warehouse catalog.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a warehouse service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create registers a new warehouse. Codes are unique.
func (s *Service) Create(ctx context.Context, code, name, location string) (*Warehouse, error) {
	w := New(code, name, location)
	if err := w.Validate(ctx); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByCode(ctx, w.Code)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("warehouse", "code", w.Code)
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	logger.Info(ctx, "warehouse created", "warehouse_id", w.ID.String(), "code", w.Code)
	return w, nil
}

// UpdateInput carries mutable warehouse fields.
type UpdateInput struct {
	Name     *string
	Location *string
}

// Update changes warehouse fields.
func (s *Service) Update(ctx context.Context, warehouseID id.ID, input UpdateInput) (*Warehouse, error) {
	w, err := s.repo.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		w.Name = *input.Name
	}
	if input.Location != nil {
		w.Location = *input.Location
	}
	if err := w.Validate(ctx); err != nil {
		return nil, err
	}

	w.Touch()
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Deactivate soft-deletes a warehouse. Its balances and history remain.
func (s *Service) Deactivate(ctx context.Context, warehouseID id.ID) error {
	w, err := s.repo.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if !w.Active {
		return nil
	}
	w.Active = false
	w.Touch()
	return s.repo.Update(ctx, w)
}

// Get retrieves a warehouse.
func (s *Service) Get(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, warehouseID)
}

// List returns warehouses, optionally including inactive ones.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Warehouse, error) {
	return s.repo.List(ctx, includeInactive)
}

// RequireActive returns the warehouse only if it is active.
func (s *Service) RequireActive(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	w, err := s.repo.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if !w.Active {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Warehouse is inactive").
			WithDetail("warehouse_id", warehouseID.String())
	}
	return w, nil
}
