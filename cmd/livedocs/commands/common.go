// Package commands implements the livedocs command line.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/embedcache"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/retry"
	"git.home.luguber.info/inful/livedocs/internal/session"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

// Global is passed to every command's Run method.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"livedocs.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" help:"Serve server-side rendered documentation over HTTP"`
	Render RenderCmd `cmd:"" help:"Render one route to HTML or to the terminal"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; sets up a default logger until a
// command loads its configuration.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(os.Stderr, c.logLevel(config.LogLevelInfo), config.LogFormatText))
	return nil
}

func (c *CLI) logLevel(configured config.LogLevel) config.LogLevel {
	if c.Verbose {
		return config.LogLevelDebug
	}
	return configured
}

// loadConfig reads the configuration file and reconfigures logging from it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = newLogger(os.Stderr, c.logLevel(cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runtime holds the process-wide pieces every session shares.
type runtime struct {
	policy  retry.Policy
	source  *transport.Mux
	cache   embedcache.Backend
	factory *session.Factory
}

func newRuntime(ctx context.Context, cfg *config.Config, rec metrics.Recorder) (*runtime, error) {
	policy := retry.FromConfig(cfg.Retry)
	source, err := transport.FromConfig(ctx, cfg.Source, policy, logProgress)
	if err != nil {
		return nil, err
	}
	cache, err := embedcache.FromConfig(ctx, cfg.Cache, embedcache.NewMemory(), policy)
	if err != nil {
		return nil, err
	}
	factory := session.NewFactory(cfg.Site, session.Options{
		Transport: source,
		Cache:     cache,
		Recorder:  rec,
	})
	slog.Debug("Runtime ready",
		slog.String("source", string(cfg.Source.Type)),
		logfields.Cache(string(cfg.Cache.Backend)))
	return &runtime{policy: policy, source: source, cache: cache, factory: factory}, nil
}

func (r *runtime) Close() {
	if err := r.cache.Close(); err != nil {
		slog.Warn("Failed to close embed cache", logfields.Error(err))
	}
}

func logProgress(url string, loaded, total int64) {
	slog.Debug("Fetch progress", logfields.URL(url), slog.Int64("loaded", loaded), slog.Int64("total", total))
}
