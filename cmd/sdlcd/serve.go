package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/softlane/sdlcd/internal/config"
	"github.com/softlane/sdlcd/internal/httpapi"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(flags.LogLevel)

			cfg, err := config.Load(flags.ConfigDir)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch, cleanup, err := buildOrchestrator(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			api := httpapi.NewServer(orch, log)
			srv := &http.Server{
				Addr:    cfg.Listen,
				Handler: api.Handler(),
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("http api listening", "addr", cfg.Listen)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "bind address (overrides config)")
	return cmd
}
