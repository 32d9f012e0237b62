package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// EPITypeHandler handles equipment type catalog endpoints.
type EPITypeHandler struct {
	*BaseHandler
	service *epitype.Service
}

// NewEPITypeHandler creates a new EPI type handler.
func NewEPITypeHandler(base *BaseHandler, service *epitype.Service) *EPITypeHandler {
	return &EPITypeHandler{BaseHandler: base, service: service}
}

// Create handles POST /epi-types.
func (h *EPITypeHandler) Create(c *gin.Context) {
	var req dto.CreateEPITypeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := h.service.Create(c.Request.Context(), epitype.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		CANumber:     req.CANumber,
		LifespanDays: req.LifespanDays,
		WarningDays:  req.WarningDays,
		UnitCost:     req.UnitCost,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, t)
}

// Get handles GET /epi-types/:id.
func (h *EPITypeHandler) Get(c *gin.Context) {
	epiTypeID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), epiTypeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// List handles GET /epi-types.
func (h *EPITypeHandler) List(c *gin.Context) {
	filter := epitype.ListFilter{
		Search:          c.Query("search"),
		IncludeInactive: c.Query("includeInactive") == "true",
		Limit:           h.ParseIntQuery(c, "limit", 50),
		Offset:          h.ParseIntQuery(c, "offset", 0),
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Paged(c, items, int64(len(items)), filter.Limit, filter.Offset)
}

// Update handles PUT /epi-types/:id.
func (h *EPITypeHandler) Update(c *gin.Context) {
	epiTypeID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateEPITypeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := h.service.Update(c.Request.Context(), epiTypeID, epitype.UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		LifespanDays: req.LifespanDays,
		WarningDays:  req.WarningDays,
		UnitCost:     req.UnitCost,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Deactivate handles DELETE /epi-types/:id.
func (h *EPITypeHandler) Deactivate(c *gin.Context) {
	epiTypeID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), epiTypeID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers EPI type routes.
func (h *EPITypeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Deactivate)
}
