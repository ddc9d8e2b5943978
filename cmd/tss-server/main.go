// Command tss-server runs the conversion service: workbook uploads over
// HTTP, run tracking, Prometheus metrics and live progress over
// websockets.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/infrastructure"
	"github.com/briantruongvn/ngocson-tss-converter/internal/metrics"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/steps"
	transport "github.com/briantruongvn/ngocson-tss-converter/internal/transport/http"
	"github.com/briantruongvn/ngocson-tss-converter/internal/validation"
	"github.com/briantruongvn/ngocson-tss-converter/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	logger.Info("starting server",
		slog.String("app", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", cfg.Server.Port))

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	// The OTel prometheus exporter feeds the default registry, so the
	// pipeline collectors join it for a single /metrics endpoint.
	collector := metrics.New(prometheus.DefaultRegisterer)

	httpMetrics, err := infrastructure.NewHTTPMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create http instruments: %w", err)
	}

	hub := websocket.NewHub(logger)
	hub.Start()
	defer hub.Stop()

	validator := validation.NewFileValidator(logger, cfg.Limits.MaxFileSizeBytes)
	manager := pipeline.NewManager(
		steps.Factory(cfg, logger),
		paths.RunDir,
		logger,
		pipeline.WithInputValidator(validator),
		pipeline.WithRunRecorder(collector),
		pipeline.WithRunProgress(hub.BroadcastRun, cfg.WebSocket.BroadcastRate, cfg.WebSocket.BroadcastBurst),
		pipeline.WithRunTracer(providers.Tracer),
	)

	uploadDir := filepath.Join(paths.OutputDir, "uploads")
	router := transport.NewRouter(transport.RouterDeps{
		Convert:  transport.NewConvertHandler(manager, uploadDir, cfg.Limits.MaxFileSizeBytes, collector, logger),
		Runs:     transport.NewRunsHandler(manager, logger),
		Health:   transport.NewHealthHandler(),
		WS:       transport.NewWSHandler(hub, cfg.WebSocket, logger),
		Gatherer: prometheus.DefaultGatherer,
		Metrics:  httpMetrics,
		Logger:   logger,
		Server:   cfg.Server,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
