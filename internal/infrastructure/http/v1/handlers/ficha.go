package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/issuance"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// FichaHandler handles PPE record endpoints.
type FichaHandler struct {
	*BaseHandler
	service  *ficha.Service
	issuance *issuance.Service
}

// NewFichaHandler creates a new PPE record handler.
func NewFichaHandler(base *BaseHandler, service *ficha.Service, issuanceSvc *issuance.Service) *FichaHandler {
	return &FichaHandler{BaseHandler: base, service: service, issuance: issuanceSvc}
}

// Create handles POST /fichas.
func (h *FichaHandler) Create(c *gin.Context) {
	var req dto.CreateFichaRequest
	if !h.BindJSON(c, &req) {
		return
	}

	f, err := h.service.Create(c.Request.Context(), ficha.CreateInput{
		EmployeeName:         req.EmployeeName,
		EmployeeRegistration: req.EmployeeRegistration,
		Department:           req.Department,
		JobTitle:             req.JobTitle,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, f)
}

// Get handles GET /fichas/:id.
func (h *FichaHandler) Get(c *gin.Context) {
	fichaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	f, err := h.service.Get(c.Request.Context(), fichaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, f)
}

// List handles GET /fichas.
func (h *FichaHandler) List(c *gin.Context) {
	filter := ficha.ListFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Limit:      h.ParseIntQuery(c, "limit", 50),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		s := ficha.Status(status)
		filter.Status = &s
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Paged(c, items, total, filter.Limit, filter.Offset)
}

// Suspend handles POST /fichas/:id/suspend.
func (h *FichaHandler) Suspend(c *gin.Context) {
	fichaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	f, err := h.service.Suspend(c.Request.Context(), fichaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, f)
}

// Reactivate handles POST /fichas/:id/reactivate.
func (h *FichaHandler) Reactivate(c *gin.Context) {
	fichaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	f, err := h.service.Reactivate(c.Request.Context(), fichaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, f)
}

// Archive handles POST /fichas/:id/archive.
// Refused while the employee still holds open units.
func (h *FichaHandler) Archive(c *gin.Context) {
	fichaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	f, err := h.service.Archive(c.Request.Context(), fichaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, f)
}

// Possession handles GET /fichas/:id/possession.
// Returns the units currently with the employee, grouped by EPI type.
func (h *FichaHandler) Possession(c *gin.Context) {
	fichaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	groups, err := h.issuance.CurrentPossession(c.Request.Context(), fichaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"fichaId": fichaID.String(),
		"groups":  groups,
	})
}

// RegisterRoutes registers PPE record routes.
func (h *FichaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/suspend", h.Suspend)
	rg.POST("/:id/reactivate", h.Reactivate)
	rg.POST("/:id/archive", h.Archive)
	rg.GET("/:id/possession", h.Possession)
}
