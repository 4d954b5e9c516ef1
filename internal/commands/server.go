package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"evalgo.org/sitesync/internal/api"
	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/integrity"
	"evalgo.org/sitesync/internal/scheduler"
)

var serverCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the admin API server",
	Long: `Start the HTTP admin API. It lists stored sites, applies declaration
documents posted to /api/v1/apply (or re-applies declarations.paths for an
empty body) and runs integrity audits.

With reconcile.interval set the server also re-applies declarations.paths
on that interval; integrity.scan_interval schedules store scans.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	audit, err := integrity.NewAuditLogger(cfg.Integrity.AuditLog)
	if err != nil {
		return err
	}
	defer audit.Close()

	server := api.New(cfg, store, logger, audit)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	jobs := scheduler.New(server.ApplyLock(), logger)
	applier := apply.NewService(store, cfg.Placeholders, logger)
	jobs.Add("reconcile", cfg.Reconcile.Interval, true, func(ctx context.Context) error {
		_, err := applier.Paths(ctx, cfg.Declarations.Paths, apply.Options{
			Sites:       cfg.Reconcile.Sites,
			StopOnError: !cfg.Reconcile.ContinueOnError,
		})
		return err
	})
	scanner := integrity.NewService(store, logger, audit)
	jobs.Add("integrity-scan", cfg.Integrity.ScanInterval, false, func(ctx context.Context) error {
		report, err := scanner.Scan(ctx, integrity.DefaultScanOptions())
		if err != nil {
			return err
		}
		if report.Summary.HealthScore < cfg.Integrity.MinHealthScore {
			logger.Warn().
				Int("health_score", report.Summary.HealthScore).
				Int("min_health_score", cfg.Integrity.MinHealthScore).
				Msg("store health below minimum")
		}
		return nil
	})
	jobs.Start(ctx)
	defer jobs.Stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
