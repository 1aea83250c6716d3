package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/PickGate/internal/api"
	"github.com/Alias1177/PickGate/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the decision API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to HTTP_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := api.NewHTTPServer(addr, api.NewServer(a.engine, a.store).Router())

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Float64("confidence_min", cfg.Thresholds.ConfidenceMin).
			Float64("edge_min", cfg.Thresholds.EdgeMin).
			Float64("max_drift_score", cfg.Thresholds.MaxDriftScore).
			Strs("fallback_levels", cfg.Chain.Levels).
			Msg("Decision API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down decision API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
