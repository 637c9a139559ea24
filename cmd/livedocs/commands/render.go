package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/preview"
	"git.home.luguber.info/inful/livedocs/internal/router"
)

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Path     string            `arg:"" optional:"" default:"/" help:"Route to render, e.g. /guide or #/guide"`
	Query    map[string]string `short:"q" help:"Query parameters passed to the route (k=v)"`
	Output   string            `short:"o" help:"Write the result to this file instead of stdout"`
	Terminal bool              `short:"t" help:"Render the resolved markdown for the terminal instead of HTML"`
}

func (r *RenderCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := io.Writer(os.Stdout)
	if r.Output != "" {
		f, err := os.Create(r.Output)
		if err != nil {
			return lderrors.WrapError(err, lderrors.CategoryValidation, "cannot create output file").
				WithContext("path", r.Output).Build()
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return RunRender(ctx, cfg, r.route(), r.Terminal, out)
}

func (r *RenderCmd) route() string {
	return r.Path + router.StringifyQuery(router.Query(r.Query))
}

// RunRender renders one route from cfg and writes it to out. A route that
// resolves to the not found page is still written, then reported as an error.
func RunRender(ctx context.Context, cfg *config.Config, route string, terminal bool, out io.Writer) error {
	rt, err := newRuntime(ctx, cfg, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if terminal {
		return renderTerminal(ctx, rt, route, out)
	}

	s, res, err := rt.factory.Open(ctx, route)
	if err != nil {
		return err
	}
	html, err := s.HTML()
	if err != nil {
		return lderrors.RenderError("serialize page").WithCause(err).Build()
	}
	if _, err := io.WriteString(out, html); err != nil {
		return err
	}
	slog.Debug("Rendered route", logfields.Route(route), logfields.Outcome(string(res.Outcome)), logfields.URL(res.URL))
	if res.Outcome == metrics.OutcomeNotFound || res.Outcome == metrics.OutcomePlaceholder {
		return lderrors.NotFoundError("page not found").WithContext("route", route).Build()
	}
	return nil
}

func renderTerminal(ctx context.Context, rt *runtime, route string, out io.Writer) error {
	s, err := rt.factory.New()
	if err != nil {
		return err
	}
	md, err := s.Markdown(ctx, route)
	if err != nil {
		return err
	}
	p, err := preview.New(out)
	if err != nil {
		return err
	}
	return p.Print(route, md)
}
