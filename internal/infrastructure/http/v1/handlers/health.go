package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"epitrack/internal/infrastructure/storage/postgres"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	pool *postgres.Pool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pool *postgres.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Live reports that the process is up. Never touches the database.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the service can take traffic, which for this
// service means the database answers a ping.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"
	database := "ok"

	if err := h.pool.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		overall = "error"
		database = "unreachable: " + err.Error()
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": gin.H{"database": database},
	})
}

// RegisterRoutes registers health routes.
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Live)
	rg.GET("/ready", h.Ready)
}
