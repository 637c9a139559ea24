package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeSite(t *testing.T, doc string) Site {
	t.Helper()
	var s Site
	require.NoError(t, yaml.Unmarshal([]byte(doc), &s))
	return s
}

func TestFileToggle(t *testing.T) {
	require.Equal(t, FileToggle{}, decodeSite(t, "load_sidebar: false").LoadSidebar)

	s := decodeSite(t, "load_sidebar: true")
	require.Equal(t, "_sidebar.md", s.LoadSidebar.File("_sidebar", ".md"))

	s = decodeSite(t, "load_navbar: nav.md")
	require.True(t, s.LoadNavbar.Enabled())
	require.Equal(t, "nav.md", s.LoadNavbar.File("_navbar", ".md"))

	s = decodeSite(t, `load_navbar: "true"`)
	require.Equal(t, "true", s.LoadNavbar.File("_navbar", ".md"), "quoted strings are file names")
}

func TestCoverPage(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		c := decodeSite(t, "cover_page: true").CoverPage
		require.Equal(t, "_coverpage", c.Resolve("/"))
		require.Empty(t, c.Resolve("/guide"))
	})
	t.Run("string only applies to root", func(t *testing.T) {
		c := decodeSite(t, "cover_page: cover.md").CoverPage
		require.Equal(t, "cover.md", c.Resolve("/"))
		require.Empty(t, c.Resolve("/zh-cn/"))
	})
	t.Run("list", func(t *testing.T) {
		c := decodeSite(t, "cover_page: [\"/\", \"/zh-cn/\"]").CoverPage
		require.Equal(t, "_coverpage", c.Resolve("/zh-cn/"))
		require.Empty(t, c.Resolve("/de/"))
	})
	t.Run("map", func(t *testing.T) {
		c := decodeSite(t, "cover_page:\n  /: true\n  /zh-cn/: cover-zh.md\n  /de/: false\n").CoverPage
		require.Equal(t, "_coverpage", c.Resolve("/"))
		require.Equal(t, "cover-zh.md", c.Resolve("/zh-cn/"))
		require.Empty(t, c.Resolve("/de/"))
	})
}

func TestNotFoundPage(t *testing.T) {
	require.False(t, decodeSite(t, "not_found_page: false").NotFoundPage.Enabled())

	n := decodeSite(t, "not_found_page: true").NotFoundPage
	require.Equal(t, "_404.md", n.Resolve("/any", ".md"))

	n = decodeSite(t, "not_found_page: my404.md").NotFoundPage
	require.Equal(t, "my404.md", n.Resolve("/any", ".md"))

	n = decodeSite(t, "not_found_page:\n  /: _404.md\n  /de: de/_404.md\n  /de/api: de/api/_404.md\n").NotFoundPage
	require.Equal(t, "de/api/_404.md", n.Resolve("/de/api/client", ".md"))
	require.Equal(t, "de/_404.md", n.Resolve("/de/guide", ".md"))
	require.Equal(t, "_404.md", n.Resolve("/fr/guide", ".md"))

	n = decodeSite(t, "not_found_page:\n  /de: de/_404.md\n").NotFoundPage
	require.Equal(t, "_404.md", n.Resolve("/fr/", ".md"), "unmatched prefix uses the default page")

	n = decodeSite(t, "not_found_page: [a, b]").NotFoundPage
	require.Equal(t, NotFoundDefault, n.Mode, "malformed shapes fall back to the default page")
}

func TestNameLink(t *testing.T) {
	l := decodeSite(t, "name_link: /home").NameLink
	href, ok := l.Resolve("/guide")
	require.True(t, ok)
	require.Equal(t, "/home", href)

	l = decodeSite(t, "name_link:\n  /zh-cn/: \"#/zh-cn/\"\n  /: \"#/\"\n").NameLink
	href, ok = l.Resolve("/zh-cn/guide")
	require.True(t, ok)
	require.Equal(t, "#/zh-cn/", href)
	href, _ = l.Resolve("/guide")
	require.Equal(t, "#/", href)
}

func TestAliasesKeepOrder(t *testing.T) {
	s := decodeSite(t, "alias:\n  /zh-cn/(.*)/_sidebar.md: /zh-cn/_sidebar.md\n  /.*/_navbar.md: /_navbar.md\n")
	require.Len(t, s.Alias, 2)
	require.Equal(t, "/zh-cn/(.*)/_sidebar.md", s.Alias[0].Source)
	require.True(t, s.Alias[1].Pattern.MatchString("/de/_navbar.md"))
	require.False(t, s.Alias[1].Pattern.MatchString("/de/_navbar.md.bak"))
}

func TestFormatUpdated(t *testing.T) {
	s := decodeSite(t, "format_updated: \"YYYY/MM/DD\"")
	require.Equal(t, "YYYY/MM/DD", s.FormatUpdated.Layout)
	require.False(t, s.FormatUpdated.IsZero())
}
