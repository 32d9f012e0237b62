package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/issuance"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// IssuanceHandler handles delivery endpoints.
type IssuanceHandler struct {
	*BaseHandler
	service *issuance.Service
}

// NewIssuanceHandler creates a new delivery handler.
func NewIssuanceHandler(base *BaseHandler, service *issuance.Service) *IssuanceHandler {
	return &IssuanceHandler{BaseHandler: base, service: service}
}

// Issue handles POST /entregas - delivers units to an employee.
func (h *IssuanceHandler) Issue(c *gin.Context) {
	var req dto.IssueRequest
	if !h.BindJSON(c, &req) {
		return
	}

	fichaID, err := id.Parse(req.FichaID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "fichaId"))
		return
	}
	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "warehouseId"))
		return
	}

	input := issuance.IssueInput{
		FichaID:     fichaID,
		WarehouseID: warehouseID,
		Notes:       req.Notes,
		Lines:       make([]issuance.IssueLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		epiTypeID, err := id.Parse(line.EPITypeID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "lines.epiTypeId"))
			return
		}
		input.Lines = append(input.Lines, issuance.IssueLine{
			EPITypeID: epiTypeID,
			Quantity:  line.Quantity,
		})
	}

	e, err := h.service.Issue(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, e)
}

// Get handles GET /entregas/:id.
func (h *IssuanceHandler) Get(c *gin.Context) {
	entregaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(c.Request.Context(), entregaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, e)
}

// List handles GET /entregas.
func (h *IssuanceHandler) List(c *gin.Context) {
	filter := issuance.ListFilter{
		FichaID:     h.ParseIDQuery(c, "fichaId"),
		WarehouseID: h.ParseIDQuery(c, "warehouseId"),
		FromDate:    h.ParseTimeQuery(c, "fromDate"),
		ToDate:      h.ParseTimeQuery(c, "toDate"),
		Limit:       h.ParseIntQuery(c, "limit", 50),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		s := issuance.Status(status)
		filter.Status = &s
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Paged(c, items, total, filter.Limit, filter.Offset)
}

// Sign handles POST /entregas/:id/sign - records the employee's signature.
func (h *IssuanceHandler) Sign(c *gin.Context) {
	entregaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.Sign(c.Request.Context(), entregaID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, e)
}

// Cancel handles POST /entregas/:id/cancel.
// Only unsigned deliveries can be cancelled; stock is restored.
func (h *IssuanceHandler) Cancel(c *gin.Context) {
	entregaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := h.service.Cancel(c.Request.Context(), entregaID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, e)
}

// Return handles POST /entregas/:id/returns - closes out issued units.
func (h *IssuanceHandler) Return(c *gin.Context) {
	entregaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input := issuance.ReturnInput{
		EntregaID: entregaID,
		Items:     make([]issuance.ReturnItem, 0, len(req.Items)),
	}
	for _, ret := range req.Items {
		itemID, err := id.Parse(ret.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "items.itemId"))
			return
		}
		input.Items = append(input.Items, issuance.ReturnItem{
			ItemID:         itemID,
			Classification: issuance.ReturnClassification(ret.Classification),
			Notes:          ret.Notes,
		})
	}

	e, err := h.service.ProcessReturn(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, e)
}

// RegisterRoutes registers delivery routes.
func (h *IssuanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Issue)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/sign", h.Sign)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/returns", h.Return)
}
