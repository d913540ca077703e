package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/api"
	"github.com/watthive/eflengine/internal/auth"
	"github.com/watthive/eflengine/internal/cache"
	"github.com/watthive/eflengine/internal/notification"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/watch"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var costCache cache.Cache = cache.NewMemoryCache()
			if rt.cfg.Redis.Addr != "" {
				costCache = cache.NewRedisCache(rt.cfg.Redis.Addr, rt.cfg.Redis.Password)
				rt.log.Info("using redis cost cache", zap.String("addr", rt.cfg.Redis.Addr))
			}

			extractor := buildExtractor(rt.cfg)
			notifier := notification.NewService(rt.store)

			svc := plans.NewService(plans.Config{
				ToleranceCents: rt.cfg.Validate.ToleranceCents,
			}, plans.Deps{
				Store:     rt.store,
				Extractor: extractor,
				Cache:     costCache,
				Notifier:  notifier,
				Logger:    rt.log,
			})

			var authSvc *auth.Service
			if rt.cfg.Auth.Disabled {
				rt.log.Warn("authentication disabled, every request is allowed")
			} else {
				authSvc, err = auth.NewService(rt.store)
				if err != nil {
					return fmt.Errorf("init auth: %w", err)
				}
			}

			if dir := rt.cfg.Watch.Dir; dir != "" {
				w := watch.New(dir, svc, rt.log)
				go func() {
					if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						rt.log.Error("disclosure watcher stopped", zap.Error(err))
					}
				}()
			}

			srv := &http.Server{
				Addr: fmt.Sprintf(":%d", rt.cfg.Port),
				Handler: api.NewMux(api.Deps{
					Plans:          svc,
					Store:          rt.store,
					Auth:           authSvc,
					Notifier:       notifier,
					Extractor:      extractor,
					AllowedOrigins: rt.cfg.CORS.AllowedOrigins,
					Logger:         rt.log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			rt.log.Info("eflengine listening",
				zap.String("addr", srv.Addr),
				zap.String("driver", rt.cfg.DB.Driver))

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			rt.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
