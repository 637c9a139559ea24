package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Several site options accept more than one YAML shape. Each shape is decided
// once here; the rest of the code only switches on the resulting Mode.

// ToggleMode says whether an optional fragment file (sidebar, navbar) is loaded.
type ToggleMode int

const (
	ToggleOff ToggleMode = iota
	ToggleDefault
	TogglePath
)

// FileToggle is `false`, `true` (conventional file name) or an explicit file name.
type FileToggle struct {
	Mode ToggleMode
	Path string
}

func (t *FileToggle) UnmarshalYAML(node *yaml.Node) error {
	*t = FileToggle{}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected bool or file name", node.Line)
	}
	if b, ok := scalarBool(node); ok {
		if b {
			t.Mode = ToggleDefault
		}
		return nil
	}
	if v := strings.TrimSpace(node.Value); v != "" {
		t.Mode, t.Path = TogglePath, v
	}
	return nil
}

// Enabled reports whether the fragment is loaded at all.
func (t FileToggle) Enabled() bool { return t.Mode != ToggleOff }

// File returns the file name to look up relative to each ancestor directory.
func (t FileToggle) File(base, ext string) string {
	switch t.Mode {
	case ToggleDefault:
		return base + ext
	case TogglePath:
		return t.Path
	default:
		return ""
	}
}

// CoverMode selects how the cover page is resolved for a route.
type CoverMode int

const (
	CoverOff CoverMode = iota
	// CoverSingle shows Path on the root route only.
	CoverSingle
	// CoverRoutes shows the conventional cover file on each listed route.
	CoverRoutes
	// CoverMap maps routes to `true` (conventional file) or an explicit path.
	CoverMap
)

// CoverRoute is one entry of a route-to-cover mapping. Path is empty for `true`.
type CoverRoute struct {
	Route string
	Path  string
	On    bool
}

// CoverPage is `bool`, a path, a list of routes or a map of route to bool/path.
type CoverPage struct {
	Mode   CoverMode
	Path   string
	Routes []string
	Map    []CoverRoute
}

// DefaultCoverFile is the conventional cover fragment name without extension.
const DefaultCoverFile = "_coverpage"

func (c *CoverPage) UnmarshalYAML(node *yaml.Node) error {
	*c = CoverPage{}
	switch node.Kind {
	case yaml.ScalarNode:
		if b, ok := scalarBool(node); ok {
			if b {
				c.Mode, c.Path = CoverSingle, DefaultCoverFile
			}
			return nil
		}
		if v := strings.TrimSpace(node.Value); v != "" {
			c.Mode, c.Path = CoverSingle, v
		}
	case yaml.SequenceNode:
		c.Mode = CoverRoutes
		for _, item := range node.Content {
			c.Routes = append(c.Routes, item.Value)
		}
	case yaml.MappingNode:
		c.Mode = CoverMap
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			entry := CoverRoute{Route: key.Value}
			if b, ok := scalarBool(val); ok {
				entry.On = b
			} else {
				entry.On, entry.Path = val.Value != "", val.Value
			}
			c.Map = append(c.Map, entry)
		}
	default:
		warnMalformed("cover_page", node)
	}
	return nil
}

// Resolve returns the cover file for routePath (relative to the route's
// parent directory, without query) or "" when the route has no cover.
func (c CoverPage) Resolve(routePath string) string {
	switch c.Mode {
	case CoverSingle:
		if routePath == "/" {
			return c.Path
		}
	case CoverRoutes:
		for _, r := range c.Routes {
			if r == routePath {
				return DefaultCoverFile
			}
		}
	case CoverMap:
		for _, e := range c.Map {
			if e.Route != routePath || !e.On {
				continue
			}
			if e.Path == "" {
				return DefaultCoverFile
			}
			return e.Path
		}
	}
	return ""
}

// NotFoundMode selects the 404 page strategy.
type NotFoundMode int

const (
	NotFoundOff NotFoundMode = iota
	NotFoundDefault
	NotFoundPath
	NotFoundByPrefix
)

// PrefixPage maps a route prefix to its 404 page.
type PrefixPage struct {
	Prefix string
	Path   string
}

// NotFoundPage is `bool`, a path or an ordered map of route prefix to path.
type NotFoundPage struct {
	Mode     NotFoundMode
	Path     string
	Prefixes []PrefixPage
}

// DefaultNotFoundFile is the conventional 404 fragment name without extension.
const DefaultNotFoundFile = "_404"

func (n *NotFoundPage) UnmarshalYAML(node *yaml.Node) error {
	*n = NotFoundPage{}
	switch node.Kind {
	case yaml.ScalarNode:
		if b, ok := scalarBool(node); ok {
			if b {
				n.Mode = NotFoundDefault
			}
			return nil
		}
		if v := strings.TrimSpace(node.Value); v != "" {
			n.Mode, n.Path = NotFoundPath, v
		}
	case yaml.MappingNode:
		n.Mode = NotFoundByPrefix
		for i := 0; i+1 < len(node.Content); i += 2 {
			n.Prefixes = append(n.Prefixes, PrefixPage{Prefix: node.Content[i].Value, Path: node.Content[i+1].Value})
		}
	default:
		warnMalformed("not_found_page", node)
		n.Mode = NotFoundDefault
	}
	return nil
}

// Enabled reports whether a 404 page is fetched before falling back to the placeholder.
func (n NotFoundPage) Enabled() bool { return n.Mode != NotFoundOff }

// Resolve returns the 404 page path for routePath. The longest matching prefix
// wins; a route matching no prefix gets the conventional file.
func (n NotFoundPage) Resolve(routePath, ext string) string {
	def := DefaultNotFoundFile + ext
	switch n.Mode {
	case NotFoundDefault:
		return def
	case NotFoundPath:
		return n.Path
	case NotFoundByPrefix:
		best := -1
		for i, p := range n.Prefixes {
			if !strings.HasPrefix(routePath, p.Prefix) {
				continue
			}
			if best < 0 || len(p.Prefix) > len(n.Prefixes[best].Prefix) {
				best = i
			}
		}
		if best >= 0 && n.Prefixes[best].Path != "" {
			return n.Prefixes[best].Path
		}
		return def
	default:
		return ""
	}
}

// NameLink is a single href or an ordered map of path fragment to href.
type NameLink struct {
	Href   string
	ByPath []PrefixPage
}

func (l *NameLink) UnmarshalYAML(node *yaml.Node) error {
	*l = NameLink{}
	switch node.Kind {
	case yaml.ScalarNode:
		l.Href = node.Value
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			l.ByPath = append(l.ByPath, PrefixPage{Prefix: node.Content[i].Value, Path: node.Content[i+1].Value})
		}
	default:
		warnMalformed("name_link", node)
	}
	return nil
}

// Resolve returns the href for the current route path. In map form the first
// key contained in the path wins.
func (l NameLink) Resolve(path string) (string, bool) {
	if len(l.ByPath) == 0 {
		return l.Href, l.Href != ""
	}
	for _, e := range l.ByPath {
		if strings.Contains(path, e.Prefix) {
			return e.Path, true
		}
	}
	return "", false
}

// AliasRule rewrites a route path matching Pattern (anchored) to Target.
type AliasRule struct {
	Pattern *regexp.Regexp
	Source  string
	Target  string
}

// Aliases is an ordered set of alias rules.
type Aliases []AliasRule

func (a *Aliases) UnmarshalYAML(node *yaml.Node) error {
	*a = nil
	if node.Kind != yaml.MappingNode {
		warnMalformed("alias", node)
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		src := node.Content[i].Value
		re, err := regexp.Compile("^" + src + "$")
		if err != nil {
			return fmt.Errorf("line %d: alias %q: %w", node.Content[i].Line, src, err)
		}
		*a = append(*a, AliasRule{Pattern: re, Source: src, Target: node.Content[i+1].Value})
	}
	return nil
}

// FormatUpdated formats the page's last-modified time. Func takes precedence over Layout.
type FormatUpdated struct {
	Layout string
	Func   func(time.Time) string
}

func (f *FormatUpdated) UnmarshalYAML(node *yaml.Node) error {
	*f = FormatUpdated{}
	if node.Kind != yaml.ScalarNode {
		warnMalformed("format_updated", node)
		return nil
	}
	f.Layout = node.Value
	return nil
}

func (f FormatUpdated) IsZero() bool { return f.Layout == "" && f.Func == nil }

func scalarBool(node *yaml.Node) (bool, bool) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!bool" {
		return false, false
	}
	b, err := strconv.ParseBool(strings.ToLower(node.Value))
	if err != nil {
		return false, false
	}
	return b, true
}

func warnMalformed(field string, node *yaml.Node) {
	slog.Warn("Unsupported configuration shape, using default",
		slog.String("field", field),
		slog.Int("line", node.Line))
}
