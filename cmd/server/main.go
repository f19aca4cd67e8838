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

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"roster/internal/app"
	"roster/internal/membership"
	"roster/internal/ops"
	"roster/internal/platform/config"
	"roster/internal/platform/httpserver"
	"roster/internal/platform/logger"
)

// main wires dependencies, serves the ops router and runs scheduled reconciliation
// until SIGINT or SIGTERM.
func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config (defaults to $"+config.EnvConfigPath+")")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("roster exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc, coordinator := deps.Membership()
	runner := deps.Runner(coordinator, false)

	opts := append(deps.HealthOptions(),
		ops.WithGatherer(deps.Registry),
		ops.WithLogger(log),
		ops.WithAdminRoutes(membership.NewHandler(svc, log)),
	)
	if cfg.Admin.Token == "" {
		log.Warn("admin token not set; admin routes will reject every request")
	}
	srv := httpserver.New(cfg.Server, ops.New(runner, cfg.Admin.Token, opts...).Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting roster", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if cfg.Reconcile.Enabled {
		g.Go(func() error {
			log.Info("scheduled reconciliation enabled", "interval", cfg.Reconcile.Interval, "remediate", cfg.Reconcile.Remediate)
			if err := runner.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
