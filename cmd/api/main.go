package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andescare/hospital-platform/internal/api/router"
	"github.com/andescare/hospital-platform/internal/appointments"
	"github.com/andescare/hospital-platform/internal/clinical"
	"github.com/andescare/hospital-platform/internal/compliance"
	appconfig "github.com/andescare/hospital-platform/internal/config"
	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/doctors"
	"github.com/andescare/hospital-platform/internal/http/handlers"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/patients"
	"github.com/andescare/hospital-platform/internal/pii"
	"github.com/andescare/hospital-platform/internal/schedule"
	"github.com/andescare/hospital-platform/internal/specialties"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// setupMetrics builds the registry, the record metrics and the scrape handler.
func setupMetrics() (http.Handler, *metrics.RecordMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recordMetrics := metrics.NewRecordMetrics(registry)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, recordMetrics
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hospital-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	keyring, err := crypto.LoadOrCreate(cfg.EncryptionKeyPath)
	if err != nil {
		logger.Error("failed to load encryption key", "error", err, "path", cfg.EncryptionKeyPath)
		os.Exit(1)
	}
	cipher, err := crypto.NewCipher(keyring)
	if err != nil {
		logger.Error("failed to initialize cipher", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the audit trail.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	var metricsHandler http.Handler
	var recordMetrics *metrics.RecordMetrics
	if cfg.MetricsEnabled {
		metricsHandler, recordMetrics = setupMetrics()
	}

	st := store.New(pool)
	guard := integrity.NewGuard(st)
	resolver := pii.NewResolver(st, cipher)
	resolver.SetMetrics(recordMetrics)
	audit := compliance.NewAuditService(auditDB)

	routerCfg := &router.Config{
		Logger: logger,
		SpecialtiesHandler: handlers.NewSpecialtiesHandler(
			specialties.NewService(st, guard, logger), recordMetrics, logger),
		DoctorsHandler: handlers.NewDoctorsHandler(
			doctors.NewService(st, cipher, resolver, guard, audit, logger), recordMetrics, logger),
		PatientsHandler: handlers.NewPatientsHandler(
			patients.NewService(st, cipher, resolver, guard, audit, logger), recordMetrics, logger),
		AppointmentsHandler: handlers.NewAppointmentsHandler(
			appointments.NewService(st, cipher, guard, logger), recordMetrics, logger),
		ClinicalHandler: handlers.NewClinicalHandler(
			clinical.NewService(st, guard, logger), recordMetrics, logger),
		SchedulesHandler: handlers.NewSchedulesHandler(
			schedule.NewService(st, logger), recordMetrics, logger),
		AuditHandler:       handlers.NewAuditHandler(audit, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
