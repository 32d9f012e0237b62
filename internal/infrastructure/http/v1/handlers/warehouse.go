package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/domain/catalogs/warehouse"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles warehouse catalog endpoints.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// Create handles POST /warehouses.
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	wh, err := h.service.Create(c.Request.Context(), req.Code, req.Name, req.Location)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, wh)
}

// Get handles GET /warehouses/:id.
func (h *WarehouseHandler) Get(c *gin.Context) {
	warehouseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	wh, err := h.service.Get(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, wh)
}

// List handles GET /warehouses.
func (h *WarehouseHandler) List(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"

	items, err := h.service.List(c.Request.Context(), includeInactive)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Paged(c, items, int64(len(items)), len(items), 0)
}

// Update handles PUT /warehouses/:id.
func (h *WarehouseHandler) Update(c *gin.Context) {
	warehouseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	wh, err := h.service.Update(c.Request.Context(), warehouseID, warehouse.UpdateInput{
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, wh)
}

// Deactivate handles DELETE /warehouses/:id.
func (h *WarehouseHandler) Deactivate(c *gin.Context) {
	warehouseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), warehouseID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers warehouse routes.
func (h *WarehouseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Deactivate)
}
