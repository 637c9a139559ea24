package router

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Query holds route query parameters. An empty value renders as a bare key.
type Query map[string]string

var (
	leadingSlashes = regexp.MustCompile(`^/+`)
	doubleSlashes  = regexp.MustCompile(`([^:])/{2,}`)
	absolutePath   = regexp.MustCompile(`(:|(//))`)
	parentPath     = regexp.MustCompile(`(\S*/)[^/]+$`)
)

// CleanPath collapses repeated slashes, keeping the ones after a URL scheme.
func CleanPath(p string) string {
	p = leadingSlashes.ReplaceAllString(p, "/")
	return doubleSlashes.ReplaceAllString(p, "$1/")
}

// JoinPath joins segments with "/" and cleans the result.
func JoinPath(parts ...string) string {
	return CleanPath(strings.Join(parts, "/"))
}

// IsAbsolutePath reports whether p carries a scheme or is protocol-relative.
func IsAbsolutePath(p string) bool {
	return absolutePath.MatchString(p)
}

// GetParentPath returns the directory part of p including the trailing slash.
// A path already ending in "/" is its own parent; a bare name has none.
func GetParentPath(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	if m := parentPath.FindStringSubmatch(p); m != nil {
		return m[1]
	}
	return ""
}

// ResolvePath normalizes "." and ".." segments of an absolute route path.
func ResolvePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	resolved := make([]string, 0, len(segments))
	for _, s := range segments {
		switch s {
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
		case ".":
		default:
			resolved = append(resolved, s)
		}
	}
	return "/" + strings.Join(resolved, "/")
}

// ParseQuery decodes "a=1&b" into a Query. Undecodable pairs are kept raw.
func ParseQuery(raw string) Query {
	q := Query{}
	raw = strings.TrimPrefix(raw, "?")
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		if dv, err := url.QueryUnescape(v); err == nil {
			v = dv
		}
		q[k] = v
	}
	return q
}

// StringifyQuery renders q as "?k=v&..." with keys sorted, skipping ignored
// keys. It returns "" when nothing remains.
func StringifyQuery(q Query, ignore ...string) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		skip := false
		for _, ig := range ignore {
			if k == ig {
				skip = true
				break
			}
		}
		if !skip {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := q[k]; v != "" {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		} else {
			parts = append(parts, url.QueryEscape(k))
		}
	}
	return "?" + strings.Join(parts, "&")
}

// IsExternal reports whether rawURL points at a different scheme or host than
// origin ("scheme://host[:port]"). Relative URLs are never external.
func IsExternal(rawURL, origin string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return true
	}
	if u.Scheme != "" && !strings.EqualFold(u.Scheme, o.Scheme) {
		return true
	}
	return u.Host != "" && !strings.EqualFold(stripDefaultPort(u), stripDefaultPort(o))
}

func stripDefaultPort(u *url.URL) string {
	host := u.Host
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
