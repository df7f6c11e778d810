// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/agro-zonal/internal/core/config"
	"github.com/mohammed-shakir/agro-zonal/internal/core/health"
	middleware "github.com/mohammed-shakir/agro-zonal/internal/core/middleware"
	"github.com/mohammed-shakir/agro-zonal/internal/core/router"
)

// Routes builds the service mux.
func Routes(logger *slog.Logger, reports router.ReportHandler, ready health.ReadinessReporter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post(router.ReportsRoute, router.HandleReport(logger, reports))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, reports router.ReportHandler, ready health.ReadinessReporter) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(logger, reports, ready),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// reports may run up to the router's timeout cap
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
