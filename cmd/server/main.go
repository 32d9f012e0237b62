// Package main is the entry point for the epitrack API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epitrack/internal/core/clock"
	"epitrack/internal/core/settings"
	"epitrack/internal/domain/adjustment"
	"epitrack/internal/domain/auth"
	"epitrack/internal/domain/balance"
	"epitrack/internal/domain/catalogs/epitype"
	"epitrack/internal/domain/catalogs/warehouse"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/issuance"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/domain/note"
	v1 "epitrack/internal/infrastructure/http/v1"
	"epitrack/internal/infrastructure/numerator"
	"epitrack/internal/infrastructure/storage/postgres"
	"epitrack/internal/infrastructure/storage/postgres/balance_repo"
	"epitrack/internal/infrastructure/storage/postgres/catalog_repo"
	"epitrack/internal/infrastructure/storage/postgres/issuance_repo"
	"epitrack/internal/infrastructure/storage/postgres/ledger_repo"
	"epitrack/internal/infrastructure/storage/postgres/note_repo"
	"epitrack/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting epitrack server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Feature flags ---
	flags := settings.NewInMemory()
	flags.SetFlag(settings.FlagAllowNegativeStock, getEnv("ALLOW_NEGATIVE_STOCK", "false") == "true")
	flags.SetFlag(settings.FlagAllowDirectAdjustment, getEnv("ALLOW_DIRECT_ADJUSTMENT", "true") == "true")

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))
	userRepo := catalog_repo.NewUserRepo(txManager)
	authService := auth.NewService(userRepo, jwtService, log)

	// --- Domain services ---
	clk := clock.System{}
	numbers := numerator.New(txManager)

	balances := balance.NewStore(balance_repo.New(txManager))
	ledgerService := ledger.NewService(ledger_repo.New(txManager), balances, flags, log)

	warehouseService := warehouse.NewService(catalog_repo.NewWarehouseRepo(txManager), log)
	epiTypeService := epitype.NewService(catalog_repo.NewEPITypeRepo(txManager), log)

	entregaRepo := issuance_repo.New(txManager)
	issuanceService := issuance.NewService(
		entregaRepo,
		catalog_repo.NewFichaRepo(txManager),
		catalog_repo.NewEPITypeRepo(txManager),
		ledgerService,
		numbers,
		txManager,
		clk,
		log,
	)

	fichaService := ficha.NewService(catalog_repo.NewFichaRepo(txManager), issuanceService, log)

	noteService := note.NewService(
		note_repo.New(txManager),
		ledgerService,
		numbers,
		txManager,
		flags,
		clk,
		log,
	)

	adjustmentService := adjustment.NewService(ledgerService, txManager, flags, log)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:              pool,
		Logger:            log,
		Audit:             auditService,
		JWTValidator:      jwtService,
		AuthService:       authService,
		WarehouseService:  warehouseService,
		EPITypeService:    epiTypeService,
		FichaService:      fichaService,
		NoteService:       noteService,
		IssuanceService:   issuanceService,
		AdjustmentService: adjustmentService,
		LedgerService:     ledgerService,
		Balances:          balances,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-ticker.C:
				pool.LogStats(statsCtx)
			}
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
