package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/catalogs/warehouse"
	"epitrack/internal/domain/note"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// NoteHandler handles movement note endpoints.
type NoteHandler struct {
	*BaseHandler
	service    *note.Service
	warehouses *warehouse.Service
}

// NewNoteHandler creates a new movement note handler.
func NewNoteHandler(base *BaseHandler, service *note.Service, warehouses *warehouse.Service) *NoteHandler {
	return &NoteHandler{BaseHandler: base, service: service, warehouses: warehouses}
}

// Create handles POST /notes - opens a draft.
func (h *NoteHandler) Create(c *gin.Context) {
	var req dto.CreateNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input := note.CreateDraftInput{
		Kind:  note.NoteKind(req.Kind),
		Notes: req.Notes,
	}

	var ok bool
	if input.OriginWarehouseID, ok = h.parseOptionalID(c, req.OriginWarehouseID, "originWarehouseId"); !ok {
		return
	}
	if input.DestWarehouseID, ok = h.parseOptionalID(c, req.DestWarehouseID, "destWarehouseId"); !ok {
		return
	}

	// Only active warehouses may appear on new notes.
	for _, wid := range []*id.ID{input.OriginWarehouseID, input.DestWarehouseID} {
		if wid == nil {
			continue
		}
		if _, err := h.warehouses.RequireActive(c.Request.Context(), *wid); err != nil {
			h.Error(c, err)
			return
		}
	}

	n, err := h.service.CreateDraft(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, n)
}

// Get handles GET /notes/:id.
func (h *NoteHandler) Get(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.Get(c.Request.Context(), noteID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// List handles GET /notes.
func (h *NoteHandler) List(c *gin.Context) {
	filter := note.ListFilter{
		WarehouseID: h.ParseIDQuery(c, "warehouseId"),
		FromDate:    h.ParseTimeQuery(c, "fromDate"),
		ToDate:      h.ParseTimeQuery(c, "toDate"),
		Search:      c.Query("search"),
		Limit:       h.ParseIntQuery(c, "limit", 50),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	if kind := c.Query("kind"); kind != "" {
		k := note.NoteKind(kind)
		filter.Kind = &k
	}
	if status := c.Query("status"); status != "" {
		s := note.Status(status)
		filter.Status = &s
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Paged(c, items, total, filter.Limit, filter.Offset)
}

// AddItem handles POST /notes/:id/items.
func (h *NoteHandler) AddItem(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.NoteItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	epiTypeID, err := id.Parse(req.EPITypeID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "epiTypeId"))
		return
	}

	n, err := h.service.AddItem(c.Request.Context(), noteID, epiTypeID, req.Quantity, req.UnitCost)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// UpdateItemQuantity handles PUT /notes/:id/items/:itemId.
func (h *NoteHandler) UpdateItemQuantity(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	var req dto.UpdateItemQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.UpdateItemQuantity(c.Request.Context(), noteID, itemID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// RemoveItem handles DELETE /notes/:id/items/:itemId.
func (h *NoteHandler) RemoveItem(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	n, err := h.service.RemoveItem(c.Request.Context(), noteID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// UpdateNotes handles PUT /notes/:id/notes.
func (h *NoteHandler) UpdateNotes(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateNotesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.UpdateNotes(c.Request.Context(), noteID, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// Conclude handles POST /notes/:id/conclude - applies the note to stock.
// ?validateStock=false waives the insufficient-stock check for this call.
func (h *NoteHandler) Conclude(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	validateStock := h.ParseBoolQuery(c, "validateStock", true)
	n, err := h.service.Conclude(c.Request.Context(), noteID, validateStock)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// Cancel handles POST /notes/:id/cancel.
// Cancelling a concluded note reverses its ledger entries.
func (h *NoteHandler) Cancel(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.Cancel(c.Request.Context(), noteID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, n)
}

// PreviewCancellation handles GET /notes/:id/cancellation-preview.
// Reports the stock changes a cancellation would make without applying them.
func (h *NoteHandler) PreviewCancellation(c *gin.Context) {
	noteID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	impact, err := h.service.PreviewCancellation(c.Request.Context(), noteID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, impact)
}

func (h *BaseHandler) parseOptionalID(c *gin.Context, raw *string, field string) (*id.ID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	parsed, err := id.Parse(*raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", field))
		return nil, false
	}
	return &parsed, true
}

// RegisterRoutes registers movement note routes.
func (h *NoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/items", h.AddItem)
	rg.PUT("/:id/items/:itemId", h.UpdateItemQuantity)
	rg.DELETE("/:id/items/:itemId", h.RemoveItem)
	rg.PUT("/:id/notes", h.UpdateNotes)
	rg.POST("/:id/conclude", h.Conclude)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/:id/cancellation-preview", h.PreviewCancellation)
}
