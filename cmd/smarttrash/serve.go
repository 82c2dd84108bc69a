package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smarttrash/smarttrash/internal/api"
	"github.com/smarttrash/smarttrash/internal/engine"
	"github.com/smarttrash/smarttrash/internal/stats"
	"github.com/smarttrash/smarttrash/internal/worker"
)

func newServeCmd(c *cli) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and live item feed",
		Long: `Starts the HTTP API used by the dashboard. POST /api/toggle opens the lid
and runs the pipeline; statistics, search and the item history are served
under /api, and stored items are pushed to websocket viewers on /ws.

When TRIGGER_INTERVAL is set the pipeline also runs on that timer.`,
		Example: `  # Start server on the configured port (PORT, default 5000)
  smarttrash serve

  # Start server on a custom port
  smarttrash serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if port != "" {
				cfg.Port = port
			}

			ctx := cmd.Context()
			hub := api.NewHub()
			a, err := newApp(ctx, cfg, engine.WithObserver(hub.PublishStage), engine.WithNotifier(hub))
			if err != nil {
				return err
			}
			defer a.Close()

			srv := api.New(a.store, a.pipeline, stats.New(a.store, nil),
				api.WithHub(hub),
				api.WithCORSOrigin(cfg.CORSOrigin),
			)
			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				log.Info().Str("addr", addr).Str("url", "http://localhost"+addr).Msg("smarttrash API available")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			g.Go(func() error {
				return hub.Run(ctx)
			})

			if cfg.TriggerInterval > 0 {
				w := worker.New(a.pipeline, cfg.TriggerInterval)
				g.Go(func() error {
					w.Start(ctx)
					return nil
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("shutdown with error")
				return err
			}
			log.Info().Int("items", a.store.Len()).Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
