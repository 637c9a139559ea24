package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/prewarm"
	"git.home.luguber.info/inful/livedocs/internal/server/handlers"
	"git.home.luguber.info/inful/livedocs/internal/server/httpserver"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunServe(ctx, cfg, root.Config)
}

// RunServe serves cfg until ctx is done. configPath is watched for changes
// when server.watch_config is set.
func RunServe(ctx context.Context, cfg *config.Config, configPath string) error {
	registry := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(registry)

	rt, err := newRuntime(ctx, cfg, rec)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := httpserver.New(cfg.Server, httpserver.Options{
		Sessions: rt.factory,
		Recorder: rec,
		Backends: handlers.Backends{
			Source: string(cfg.Source.Type),
			Cache:  string(cfg.Cache.Backend),
		},
		MetricsHandler: metrics.HTTPHandler(registry),
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if cfg.Server.WatchConfig {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			rt.factory.Update(next.Site)
			slog.Info("Configuration reloaded; new sessions use the updated site", logfields.Path(configPath))
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if cfg.Prewarm.Enabled {
		runner, err := prewarm.New(cfg.Prewarm, rt.factory,
			prewarm.WithRefresher(rt.source),
			prewarm.WithRetryPolicy(rt.policy),
			prewarm.WithRecorder(rec))
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := runner.Stop(); err != nil {
				slog.Warn("Failed to stop prewarm scheduler", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping server...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
