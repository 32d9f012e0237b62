// Package adjustment provides direct stock corrections outside the
// movement-note workflow: a counted value is written straight to a balance
// row, with the delta recorded in the ledger.
package adjustment

import (
	"context"

	"epitrack/internal/core/actorctx"
	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// RoleStockManager may perform direct adjustments.
const RoleStockManager = "stock_manager"

// Service applies direct adjustments.
type Service struct {
	ledger   *ledger.Service
	txm      tx.Manager
	settings settings.Provider
	log      *logger.Logger
}

// NewService creates an adjustment service.
func NewService(ledgerSvc *ledger.Service, txm tx.Manager, settings settings.Provider, log *logger.Logger) *Service {
	return &Service{
		ledger:   ledgerSvc,
		txm:      txm,
		settings: settings,
		log:      log,
	}
}

// Input is one direct adjustment request.
type Input struct {
	WarehouseID id.ID  `json:"warehouseId"`
	EPITypeID   id.ID  `json:"epiTypeId"`
	Target      int64  `json:"target"`
	Reason      string `json:"reason"`
}

func (in Input) validate() error {
	if id.IsNil(in.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(in.EPITypeID) {
		return apperror.NewValidation("EPI type is required").WithDetail("field", "epiTypeId")
	}
	if in.Target < 0 {
		return apperror.NewValidation("target quantity cannot be negative").WithDetail("target", in.Target)
	}
	if in.Reason == "" {
		return apperror.NewValidation("adjustment reason is required").WithDetail("field", "reason")
	}
	return nil
}

// Adjust writes one counted value. Fails with a nothing-to-adjust business
// error when the current quantity already matches the target.
func (s *Service) Adjust(ctx context.Context, input Input) (*ledger.Entry, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var e *ledger.Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.ledger.CreateAdjustment(ctx, input.WarehouseID, input.EPITypeID, input.Target, nil, input.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"warehouse_id", input.WarehouseID.String(),
		"epi_type_id", input.EPITypeID.String(),
		"target", input.Target,
		"delta", e.SignedQuantity(),
	)
	return e, nil
}

// BulkResult summarizes a bulk adjustment. Positive and Negative count the
// applied lines by direction and TotalAdjusted sums the delta magnitudes.
type BulkResult struct {
	Applied       int             `json:"applied"`
	Skipped       int             `json:"skipped"`
	Positive      int             `json:"positive"`
	Negative      int             `json:"negative"`
	TotalAdjusted int64           `json:"totalAdjusted"`
	Entries       []*ledger.Entry `json:"entries"`
}

// AdjustBulk applies a set of counted values in one transaction. Lines
// whose count already matches are skipped; any other failure rolls back
// the whole batch.
func (s *Service) AdjustBulk(ctx context.Context, inputs []Input) (*BulkResult, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperror.NewValidation("at least one adjustment line is required")
	}
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, err
		}
	}

	result := &BulkResult{}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, in := range inputs {
			e, err := s.ledger.CreateAdjustment(ctx, in.WarehouseID, in.EPITypeID, in.Target, nil, in.Reason)
			if err != nil {
				if apperror.IsCode(err, apperror.CodeNothingToAdjust) {
					result.Skipped++
					continue
				}
				return err
			}
			result.Applied++
			result.Entries = append(result.Entries, e)
			if delta := e.SignedQuantity(); delta > 0 {
				result.Positive++
				result.TotalAdjusted += delta
			} else {
				result.Negative++
				result.TotalAdjusted -= delta
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "bulk stock adjustment applied",
		"applied", result.Applied,
		"skipped", result.Skipped,
		"positive", result.Positive,
		"negative", result.Negative,
		"total_adjusted", result.TotalAdjusted,
	)
	return result, nil
}

func (s *Service) authorize(ctx context.Context) error {
	if !s.settings.AllowDirectAdjustment(ctx) {
		return apperror.NewBusinessRule(apperror.CodeAdjustmentDisabled, "Direct stock adjustments are disabled").
			WithDetail("flag", settings.FlagAllowDirectAdjustment)
	}
	if !actorctx.HasRole(ctx, RoleStockManager) {
		return apperror.NewForbidden("Direct stock adjustments require the stock manager role")
	}
	return nil
}
