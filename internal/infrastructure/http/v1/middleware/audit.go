package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"epitrack/internal/core/id"
	"epitrack/internal/infrastructure/storage/postgres"
	"epitrack/pkg/logger"
)

// maxAuditBody caps how much of a request body lands in the audit log.
const maxAuditBody = 64 * 1024

// Audit records every successful mutating request in the audit log.
// Audit writes are best effort: a failed write is logged and the response
// goes out unchanged.
func Audit(audit *postgres.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()

		if c.Writer.Status() < http.StatusOK || c.Writer.Status() >= http.StatusMultipleChoices {
			return
		}

		entry := postgres.AuditEntry{
			EntityType: entityTypeFromPath(c.FullPath()),
			Action:     actionFromRequest(c),
		}
		if entityID, err := id.Parse(c.Param("id")); err == nil {
			entry.EntityID = entityID
		}
		if json.Valid(body) {
			entry.Changes = body
		}

		ctx := c.Request.Context()
		if err := audit.Log(ctx, entry); err != nil {
			logger.Error(ctx, "audit write failed",
				"error", err,
				"path", c.FullPath(),
			)
		}
	}
}

// entityTypeFromPath takes the first collection segment after the API
// prefix, e.g. /api/v1/notes/:id/conclude -> "notes".
func entityTypeFromPath(fullPath string) string {
	trimmed := strings.TrimPrefix(fullPath, "/api/v1/")
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}

func actionFromRequest(c *gin.Context) postgres.AuditAction {
	path := c.FullPath()
	switch {
	case strings.HasSuffix(path, "/conclude"):
		return postgres.AuditActionConclude
	case strings.HasSuffix(path, "/cancel"):
		return postgres.AuditActionCancel
	case strings.HasSuffix(path, "/returns"):
		return postgres.AuditActionReturn
	case strings.HasPrefix(path, "/api/v1/adjustments"):
		return postgres.AuditActionAdjust
	case path == "/api/v1/entregas" && c.Request.Method == http.MethodPost:
		return postgres.AuditActionIssue
	case c.Request.Method == http.MethodPost:
		return postgres.AuditActionCreate
	case c.Request.Method == http.MethodDelete:
		return postgres.AuditActionDelete
	}
	return postgres.AuditActionUpdate
}
