package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"prelaunch/internal/platform/httpserver"
	"prelaunch/internal/platform/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the landing page HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)
			if cfg.UsesDevSigningKey() {
				log.Warn("admin tokens are signed with the development key; set PRELAUNCH_JWT_SIGNING_KEY")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				a.close(closeCtx)
			}()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				srv := httpserver.New(cfg.Server, a.router)
				return httpserver.Run(gctx, srv, nil, cfg.Server.ShutdownTimeout, log)
			})
			g.Go(func() error {
				return a.sessions.Run(gctx, cfg.Session.SweepInterval)
			})
			g.Go(func() error {
				interval := cfg.RateLimit.Window
				if interval <= 0 {
					interval = time.Minute
				}
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						a.fallbackLimiter.Prune()
					}
				}
			})

			log.Info("prelaunch started",
				"addr", cfg.Server.Addr,
				"store", a.storeName,
				"redis", a.redis != nil,
				"kafka", a.publisher != nil,
			)
			return g.Wait()
		},
	}
}
