package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/adjustment"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles direct stock adjustment endpoints.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, service: service}
}

// Adjust handles POST /adjustments.
func (h *AdjustmentHandler) Adjust(c *gin.Context) {
	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, ok := h.toInput(c, req)
	if !ok {
		return
	}

	entry, err := h.service.Adjust(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, entry)
}

// AdjustBulk handles POST /adjustments/bulk.
// Lines already matching their target are skipped; any other failure rolls
// the whole batch back.
func (h *AdjustmentHandler) AdjustBulk(c *gin.Context) {
	var req dto.BulkAdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inputs := make([]adjustment.Input, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		input, ok := h.toInput(c, a)
		if !ok {
			return
		}
		inputs = append(inputs, input)
	}

	result, err := h.service.AdjustBulk(c.Request.Context(), inputs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

func (h *AdjustmentHandler) toInput(c *gin.Context, req dto.AdjustRequest) (adjustment.Input, bool) {
	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "warehouseId"))
		return adjustment.Input{}, false
	}
	epiTypeID, err := id.Parse(req.EPITypeID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "epiTypeId"))
		return adjustment.Input{}, false
	}
	return adjustment.Input{
		WarehouseID: warehouseID,
		EPITypeID:   epiTypeID,
		Target:      req.Target,
		Reason:      req.Reason,
	}, true
}

// RegisterRoutes registers adjustment routes.
func (h *AdjustmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Adjust)
	rg.POST("/bulk", h.AdjustBulk)
}
