package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
	"github.com/taljindergill78/FSE570/internal/config"
	"github.com/taljindergill78/FSE570/internal/health"
	"github.com/taljindergill78/FSE570/internal/httpapi"
	"github.com/taljindergill78/FSE570/internal/pipeline"
	"github.com/taljindergill78/FSE570/internal/sources"
	"github.com/taljindergill78/FSE570/internal/streaming"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		logger.Fatal("Failed to create data root", zap.String("data_root", cfg.DataRoot), zap.Error(err))
	}

	svc, err := pipeline.Build(cfg, pipeline.BuildOptions{}, logger)
	if err != nil {
		logger.Fatal("Failed to assemble investigator", zap.Error(err))
	}
	defer svc.Close()

	if cfg.Registry.File != "" && cfg.Registry.Watch {
		if err := svc.Registry.Watch(ctx, cfg.Registry.File, logger.Named("registry")); err != nil {
			logger.Warn("Registry hot reload unavailable", zap.String("file", cfg.Registry.File), zap.Error(err))
		}
	}

	// Health checks are registered before the server starts so probes are
	// meaningful from the first request.
	hm := health.NewManager(cfg.Server.HealthInterval, logger.Named("health"))
	checkers := []health.Checker{
		health.NewDataRootChecker(cfg.DataRoot),
		health.NewSourceBreakerChecker(circuitbreaker.GlobalMetricsCollector, sources.BreakerService),
		health.NewRegistryChecker(svc.Registry),
	}
	if svc.Redis != nil {
		checkers = append(checkers, health.NewRedisHealthChecker(svc.Redis))
	}
	for _, c := range checkers {
		if err := hm.RegisterChecker(c); err != nil {
			logger.Warn("Failed to register health checker", zap.String("checker", c.Name()), zap.Error(err))
		}
	}
	hm.Start(ctx)

	if cfg.Metrics.Enabled {
		circuitbreaker.StartMetricsCollection(ctx, cfg.Metrics.Interval)
	}

	mux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	api := httpapi.NewInvestigationHandler(svc.Runner, svc.Registry, streaming.NewManager(cfg.Server.StreamCapacity), logger.Named("api"))
	api.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down investigation service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Background investigations interrupted", zap.Error(err))
	}
	hm.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", zap.Error(err))
	}
}
