package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

func dirConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	cfg, err := config.Parse([]byte("source:\n  type: dir\n  dir: " + dir + "\n"))
	require.NoError(t, err)
	return cfg
}

func TestRunRenderWritesHTML(t *testing.T) {
	cfg := dirConfig(t, map[string]string{"README.md": "# Hello\n\nworld\n"})

	var out bytes.Buffer
	require.NoError(t, RunRender(context.Background(), cfg, "/", false, &out))
	require.Contains(t, out.String(), "<p>world</p>")
	require.Contains(t, out.String(), "<html")
}

func TestRunRenderMissingRouteIsNotFound(t *testing.T) {
	cfg := dirConfig(t, map[string]string{"README.md": "# Hello\n"})

	var out bytes.Buffer
	err := RunRender(context.Background(), cfg, "/missing", false, &out)
	require.Error(t, err)
	require.True(t, lderrors.IsNotFound(err))
	require.NotEmpty(t, out.String())
	require.Equal(t, 4, lderrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestRunRenderTerminal(t *testing.T) {
	cfg := dirConfig(t, map[string]string{
		"guide.md": "# Guide\n\n[part](part.md ':include')\n",
		"part.md":  "included text\n",
	})

	var out bytes.Buffer
	require.NoError(t, RunRender(context.Background(), cfg, "/guide", true, &out))
	require.Contains(t, out.String(), "Guide")
	require.Contains(t, out.String(), "included text")
	require.NotContains(t, out.String(), "\x1b[")
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livedocs.yaml")
	require.NoError(t, RunInit(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "site:")

	require.Error(t, RunInit(path, false))
	require.NoError(t, RunInit(path, true))
}

func TestParseRenderFlags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"-c", "site.yaml", "render", "/guide", "-q", "lang=en", "-o", "out.html"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(kctx.Command(), "render"))
	require.Equal(t, "site.yaml", cli.Config)
	require.Equal(t, "out.html", cli.Render.Output)
	require.Equal(t, "/guide?lang=en", cli.Render.route())
}

func TestRenderRouteWithoutQuery(t *testing.T) {
	cmd := RenderCmd{Path: "#/guide"}
	require.Equal(t, "#/guide", cmd.route())
}

func TestLogLevelFollowsVerbose(t *testing.T) {
	cli := CLI{Verbose: true}
	require.Equal(t, config.LogLevelDebug, cli.logLevel(config.LogLevelWarn))
	cli.Verbose = false
	require.Equal(t, config.LogLevelWarn, cli.logLevel(config.LogLevelWarn))
}
