// Package router maps route paths to content files and content links back to
// route URLs.
package router

import (
	"regexp"
	"strings"
	"sync"

	"git.home.luguber.info/inful/livedocs/internal/config"
)

// Route is the parsed view location: a path like "/guide/intro" plus query.
type Route struct {
	Path  string
	Query Query
}

// Router owns the current route and the path conventions of a site.
type Router struct {
	site *config.Site

	mu      sync.RWMutex
	current Route
	fileExt *regexp.Regexp
}

// New creates a router for site. The site must not be mutated afterwards.
func New(site *config.Site) *Router {
	ext := strings.TrimPrefix(site.Ext, ".")
	return &Router{
		site:    site,
		current: Route{Path: "/", Query: Query{}},
		fileExt: regexp.MustCompile(`\.(` + regexp.QuoteMeta(ext) + `|html)$`),
	}
}

// SetRoute makes route current.
func (r *Router) SetRoute(route Route) {
	if route.Query == nil {
		route.Query = Query{}
	}
	if route.Path == "" {
		route.Path = "/"
	}
	r.mu.Lock()
	r.current = route
	r.mu.Unlock()
}

// Route returns the current route.
func (r *Router) Route() Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Parse reads a route from "#/path?q", "/path?q" or a full URL whose hash or
// path carries the route.
func (r *Router) Parse(raw string) Route {
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[i+1:]
	} else if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			raw = rest[j:]
		} else {
			raw = "/"
		}
	}
	path, query, _ := strings.Cut(raw, "?")
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Route{Path: path, Query: ParseQuery(query)}
}

// GetBasePath returns the configured base path content files live under.
func (r *Router) GetBasePath() string { return r.site.BasePath }

// GetCurrentPath returns the current route path including its query string.
func (r *Router) GetCurrentPath() string {
	route := r.Route()
	return route.Path + StringifyQuery(route.Query)
}

// GetFile maps a route path to the content file that backs it: aliases are
// applied, the extension is added ("/" maps to README), the homepage replaces
// the root README and relative results are joined onto the base path.
func (r *Router) GetFile(path string) string {
	ext := r.site.Ext
	path = r.applyAlias(path)
	switch {
	case r.fileExt.MatchString(path):
	case strings.HasSuffix(path, "/"):
		path += "README" + ext
	default:
		path += ext
	}
	if path == "/README"+ext && r.site.Homepage != "" {
		path = r.site.Homepage
	}
	if IsAbsolutePath(path) {
		return path
	}
	return JoinPath(r.GetBasePath(), path)
}

// applyAlias rewrites path with the first matching alias, repeating until no
// alias applies or an alias would rewrite a path to itself.
func (r *Router) applyAlias(path string) string {
	last := ""
	for guard := 0; guard < 32; guard++ {
		var rule *config.AliasRule
		for i := range r.site.Alias {
			a := &r.site.Alias[i]
			if a.Pattern.MatchString(path) && path != last {
				rule = a
				break
			}
		}
		if rule == nil {
			return path
		}
		last, path = path, rule.Pattern.ReplaceAllString(path, rule.Target)
	}
	return path
}

// ToURL turns a content link into a route URL. "#slug" anchors become
// "?id=slug" on the current route; ".md" suffixes are dropped; relative links
// resolve against currentRoute when relative paths are enabled.
func (r *Router) ToURL(path string, params Query, currentRoute string) string {
	local := currentRoute != "" && strings.HasPrefix(path, "#")
	route := r.Parse(strings.Replace(path, "#", "?id=", 1))
	if strings.HasPrefix(path, "#") {
		route.Path = ""
	} else if !strings.HasPrefix(path, "/") {
		route.Path = strings.TrimPrefix(route.Path, "/")
	}
	for k, v := range params {
		route.Query[k] = v
	}

	out := route.Path + StringifyQuery(route.Query)
	out = stripMarkdownExt(out, r.site.Ext)

	if local {
		if i := strings.Index(currentRoute, "?"); i > 0 {
			currentRoute = currentRoute[:i]
		}
		out = currentRoute + out
	}

	if r.site.RelativePath && !strings.HasPrefix(out, "/") {
		dir := currentRoute[:strings.LastIndex(currentRoute, "/")+1]
		out = CleanPath(ResolvePath(dir + out))
	} else {
		out = CleanPath("/" + out)
	}

	if r.site.RouterMode == config.RouterModeHistory {
		return out
	}
	return "#" + out
}

func stripMarkdownExt(p, ext string) string {
	if ext == "" {
		ext = ".md"
	}
	if i := strings.Index(p, ext+"?"); i >= 0 {
		return p[:i] + p[i+len(ext):]
	}
	return strings.TrimSuffix(p, ext)
}
