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

	"golang.org/x/sync/errgroup"

	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/logger"
	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
)

// main loads configuration, wires the registry and keeps the process
// lifecycle small. Business logic lives in internal/registry.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vcregistry:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	owner, err := id.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		return fmt.Errorf("OWNER_ADDRESS: %w", err)
	}
	variant, err := models.ParseVariant(cfg.Variant)
	if err != nil {
		return fmt.Errorf("REGISTRY_VARIANT: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing vcregistry",
		"addr", cfg.Addr,
		"variant", variant,
		"owner", owner,
		"kafka", cfg.KafkaEnabled(),
	)

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	state, err := app.registry.Initialize(ctx, owner, variant)
	if err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}
	log.Info("registry ready",
		"owner", state.Owner,
		"variant", state.Variant,
		"authority_configured", state.AuthorityConfigured(),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	app.start(gctx, g)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		app.stop(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

// logStopErr reports a failed component shutdown without aborting the rest.
func logStopErr(log *slog.Logger, component string, err error) {
	if err != nil {
		log.Warn("component shutdown failed", "component", component, "error", err)
	}
}
