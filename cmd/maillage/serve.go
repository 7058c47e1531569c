package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/maillage/api"
	"github.com/use-agent/maillage/api/handler"
	"github.com/use-agent/maillage/runner"
)

// runRetention is how long a finished API run stays retrievable.
const runRetention = time.Hour

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve runs, single link checks, health and Prometheus metrics over HTTP.
Runs are processed one at a time in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}
	cmd.Flags().String("host", "", "listen address (default 0.0.0.0)")
	cmd.Flags().Int("port", 0, "listen port (default 8080)")
	cmd.Flags().String("engine", "", "page fetch engine: http, browser or auto (default http)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	cfg := a.cfg
	logger := a.logger
	logger.Info("maillage starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Fetch.Engine,
	)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	// Chrome is killed after the server has drained.
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Classifier: svc.classifier,
		Pages:      svc.pages,
		Runs:       handler.NewRunStore(ctx, runRetention),
		Version:    version,
		NewRunner: func(site string, onProgress func(runner.Progress)) (*runner.Runner, error) {
			return svc.newRunner(site, logger.With("site", site), onProgress)
		},
	}
	router := api.NewRouter(ctx, deps, cfg, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}
	logger.Info("maillage stopped")
	return nil
}
