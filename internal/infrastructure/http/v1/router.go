// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/domain/adjustment"
	"epitrack/internal/domain/auth"
	"epitrack/internal/domain/balance"
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/domain/catalogs/warehouse"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/issuance"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/domain/note"
	"epitrack/internal/infrastructure/http/v1/handlers"
	"epitrack/internal/infrastructure/http/v1/middleware"
	"epitrack/internal/infrastructure/storage/postgres"
	"epitrack/pkg/logger"
)

// RoleAdmin may manage user accounts.
const RoleAdmin = "admin"

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger
	Audit  *postgres.AuditService

	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service

	WarehouseService  *warehouse.Service
	EPITypeService    *epitype.Service
	FichaService      *ficha.Service
	NoteService       *note.Service
	IssuanceService   *issuance.Service
	AdjustmentService *adjustment.Service
	LedgerService     *ledger.Service
	Balances          *balance.Store
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: recovery outermost, then request id, logging,
	// error rendering.
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	healthHandler.RegisterRoutes(router.Group("/health"))

	authHandler := handlers.NewAuthHandler(base, cfg.AuthService)

	apiV1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(apiV1.Group("/auth"))

		protected := apiV1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		protected.Use(middleware.Audit(cfg.Audit))

		adminAuth := protected.Group("/auth")
		adminAuth.Use(middleware.RequireRole(RoleAdmin))
		authHandler.RegisterAdminRoutes(adminAuth)

		handlers.NewWarehouseHandler(base, cfg.WarehouseService).
			RegisterRoutes(protected.Group("/warehouses"))
		handlers.NewEPITypeHandler(base, cfg.EPITypeService).
			RegisterRoutes(protected.Group("/epi-types"))
		handlers.NewFichaHandler(base, cfg.FichaService, cfg.IssuanceService).
			RegisterRoutes(protected.Group("/fichas"))
		handlers.NewNoteHandler(base, cfg.NoteService, cfg.WarehouseService).
			RegisterRoutes(protected.Group("/notes"))
		handlers.NewIssuanceHandler(base, cfg.IssuanceService).
			RegisterRoutes(protected.Group("/entregas"))
		handlers.NewStockHandler(base, cfg.Balances, cfg.LedgerService, cfg.EPITypeService).
			RegisterRoutes(protected.Group("/stock"))
		handlers.NewAuditHandler(base, cfg.Audit).
			RegisterRoutes(protected.Group("/audit"))

		adjustments := protected.Group("/adjustments")
		adjustments.Use(middleware.RequireRole(adjustment.RoleStockManager))
		handlers.NewAdjustmentHandler(base, cfg.AdjustmentService).
			RegisterRoutes(adjustments)
	}

	return router
}
