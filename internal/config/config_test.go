package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  url: https://docs.example.com/content/\n"))
	require.NoError(t, err)

	require.Equal(t, ".md", cfg.Site.Ext)
	require.Equal(t, "README.md", cfg.Site.Homepage)
	require.Equal(t, RouterModeHash, cfg.Site.RouterMode)
	require.Equal(t, 6, cfg.Site.MaxLevel)
	require.Equal(t, "https://docs.example.com", cfg.Site.Origin)
	require.Equal(t, SourceHTTP, cfg.Source.Type)
	require.Equal(t, 15*time.Second, cfg.Source.Timeout)
	require.True(t, cfg.Source.ResponseCacheEnabled())
	require.Equal(t, ":3000", cfg.Server.Addr)
	require.Equal(t, CacheMemory, cfg.Cache.Backend)
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
	require.False(t, cfg.Site.LoadSidebar.Enabled())
	require.False(t, cfg.Site.NotFoundPage.Enabled())
	require.Nil(t, cfg.Site.ExecuteScript)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("LIVEDOCS_TEST_ORIGIN", "https://env.example.com")
	cfg, err := Parse([]byte("source:\n  url: ${LIVEDOCS_TEST_ORIGIN}/docs\n"))
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com/docs", cfg.Source.URL)
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"missing url":      "source:\n  type: http\n",
		"relative url":     "source:\n  url: /docs\n",
		"missing dir":      "source:\n  type: dir\n",
		"missing git url":  "source:\n  type: git\n",
		"redis addr":       "source:\n  url: https://x.io\ncache:\n  backend: redis\n",
		"bad router mode":  "source:\n  url: https://x.io\nsite:\n  router_mode: hashbang\n",
		"bad fallback":     "source:\n  url: https://x.io\nsite:\n  fallback_languages: [\"zh/cn\"]\n",
		"bad alias regexp": "source:\n  url: https://x.io\nsite:\n  alias:\n    \"/(a\": /b\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			require.True(t, lderrors.HasCategory(err, lderrors.CategoryConfig) ||
				lderrors.HasCategory(err, lderrors.CategoryValidation), "got %v", err)
		})
	}
}

func TestLoadResolvesDirRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livedocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  type: dir\n  dir: docs\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, SourceDir, cfg.Source.Type)
	require.Equal(t, filepath.Join(dir, "docs"), cfg.Source.Dir)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIVEDOCS_DOTENV_URL=https://dotenv.example.com\n"), 0o600))
	path := filepath.Join(dir, "livedocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: ${LIVEDOCS_DOTENV_URL}\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LIVEDOCS_DOTENV_URL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://dotenv.example.com", cfg.Source.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, lderrors.HasCategory(err, lderrors.CategoryConfig))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livedocs.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	t.Setenv("LIVEDOCS_ORIGIN", "https://docs.example.com")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Site.LoadSidebar.Enabled())
	require.Equal(t, "_sidebar.md", cfg.Site.LoadSidebar.File("_sidebar", cfg.Site.Ext))
	require.Equal(t, 2, cfg.Site.SubMaxLevel)
}

func TestShouldExecuteScript(t *testing.T) {
	var s Site
	require.False(t, s.ShouldExecuteScript(false))
	require.True(t, s.ShouldExecuteScript(true))
	off := false
	s.ExecuteScript = &off
	require.False(t, s.ShouldExecuteScript(true))
}
