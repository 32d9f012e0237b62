package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/infrastructure/storage/postgres"
)

// AuditHandler exposes the audit trail recorded by the audit middleware.
type AuditHandler struct {
	*BaseHandler
	audit *postgres.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, audit *postgres.AuditService) *AuditHandler {
	return &AuditHandler{BaseHandler: base, audit: audit}
}

// EntityHistory handles GET /audit/:entityType/:id.
// Returns the recorded actions for one entity, newest first.
func (h *AuditHandler) EntityHistory(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	entries, err := h.audit.GetEntityHistory(c.Request.Context(), c.Param("entityType"), entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"entityType": c.Param("entityType"),
		"entityId":   entityID.String(),
		"entries":    entries,
	})
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:entityType/:id", h.EntityHistory)
}
