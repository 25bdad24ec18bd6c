// Server entry point: load config, assemble the lookup stack and serve HTTP until signalled.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"postcode-api/internal/api"
	"postcode-api/internal/app"
	"postcode-api/internal/config"
	"postcode-api/internal/logger"
	"postcode-api/internal/store"
	"postcode-api/internal/utils"
	"postcode-api/internal/version"
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("exit", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred cleanup happens before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	l.Info("starting", "commit", version.Commit, "data_source", cfg.DataSource, "data_dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()
	if err := a.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		l.Error("metrics_register_error", "err", err)
	}

	var st *store.Store
	if cfg.Redis.Enabled {
		rc := utils.OpenRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Pass, cfg.Redis.DB)
		if rc == nil {
			l.Info("redis_disabled", "reason", "no_host")
		} else {
			defer rc.Close()
			if err := rc.Ping(ctx).Err(); err != nil {
				l.Error("redis_ping_error", "err", err)
			} else {
				l.Info("redis_ping_ok")
			}
			st = store.New(rc)
		}
	} else {
		l.Info("redis_disabled")
	}

	handler, err := api.NewRouter(api.Deps{
		Engine:    a.Engine,
		AreaTypes: a.AreaTypes,
		Stats:     st,
		Logger:    l,
		RateLimit: cfg.RateLimit(),
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	s := &http.Server{Addr: cfg.Addr(), Handler: handler}
	errc := make(chan error, 1)
	go func() {
		l.Info("server_listening", "addr", s.Addr, "url", "http://localhost"+s.Addr+"/")
		errc <- s.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin", "timeout", cfg.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		cancel()
	}
	a.Engine.Wait()
	l.Info("shutdown_done")
	return serveErr
}
