package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"diffusiond/internal/httpapi"
	"diffusiond/internal/inject"
	"diffusiond/internal/logging"
	"diffusiond/internal/manager"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the diffusion pipeline and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
}

func runServe(cmd *cobra.Command, f *rootFlags) error {
	cfg, err := resolveConfig(cmd, f, osLookup)
	if err != nil {
		return err
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// Generations outlive the signal so the drain can finish them; they are
	// canceled only when the drain times out.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(base)

	injector := inject.Setup(cfg, log)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	mgr, err := do.Invoke[*manager.Manager](injector)
	if err != nil {
		return err
	}
	// The pipeline is resident before the listener opens.
	if err := mgr.Load(ctx); err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	srv, err := do.Invoke[*http.Server](injector)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("diffusiond listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("drain timed out, canceling generations")
			cancelBase()
			_ = srv.Close()
		}
		return nil
	})
	return g.Wait()
}
