// Package main starts the pipescope HTTP API: pipeline file parsing,
// execution planning, simulation and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pipescope/core/cmd/api/middleware"
	"github.com/pipescope/core/internal/config"
	"github.com/pipescope/core/internal/dvctool"
	"github.com/pipescope/core/internal/handlers"
	"github.com/pipescope/core/internal/parser"
	"github.com/pipescope/core/internal/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, logger, cfg.Addr, newRouter(cfg, logger))
}

// newRouter wires the handlers with their dependencies.
func newRouter(cfg config.Config, logger *slog.Logger) http.Handler {
	registry := parser.DefaultRegistry(newStageSource(cfg))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := simulator.NewMetrics(promRegistry)

	maxBody := int64(cfg.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler(registry))
	mux.HandleFunc("/parse", handlers.ParseHandler(registry, maxBody))
	mux.HandleFunc("/plan", handlers.PlanHandler(maxBody))
	mux.HandleFunc("/simulate", handlers.SimulateHandler(metrics, maxBody))
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	return middleware.Recover(logger, middleware.RequestLog(logger, middleware.Cors(cfg.CORSOrigin, mux)))
}

// newStageSource decides whether API requests may run dvc. Without a project
// root, DVC files are built from the posted content only. With one, dvc runs
// for projects below the root, using the pinned binary or PATH and never a
// virtualenv found next to the requested file.
func newStageSource(cfg config.Config) parser.StageSource {
	if cfg.DVCRoot == "" {
		return dvctool.Offline{}
	}

	opts := []dvctool.Option{dvctool.WithRoot(cfg.DVCRoot), dvctool.WithoutVirtualenv()}
	if cfg.DVCBinary != "" {
		opts = append(opts, dvctool.WithBinary(cfg.DVCBinary))
	}
	return dvctool.New(opts...)
}

// serve runs the server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting.", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Server shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
