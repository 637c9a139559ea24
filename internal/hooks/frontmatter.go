package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/livedocs/internal/logfields"
)

// ErrMissingClosingDelimiter indicates the page started with a front matter
// delimiter but never closed it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// SplitFrontMatter separates `---` delimited YAML front matter from the page
// body. had is false when the page does not start with a delimiter.
func SplitFrontMatter(content string) (frontMatter, body string, had bool, err error) {
	nl := "\n"
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		nl = "\r\n"
	}
	open := "---" + nl
	if !strings.HasPrefix(content, open) {
		return "", content, false, nil
	}
	rest := content[len(open):]
	if strings.HasPrefix(rest, open) {
		return "", rest[len(open):], true, nil
	}

	closeSeq := nl + "---"
	idx := strings.Index(rest, closeSeq+nl)
	if idx < 0 {
		if !strings.HasSuffix(rest, closeSeq) {
			return "", content, false, ErrMissingClosingDelimiter
		}
		return rest[:len(rest)-len(closeSeq)+len(nl)], "", true, nil
	}
	return rest[:idx+len(nl)], rest[idx+len(closeSeq)+len(nl):], true, nil
}

// ParseFrontMatter decodes raw front matter into attributes.
func ParseFrontMatter(raw string) (map[string]any, error) {
	attrs := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return attrs, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// StripFrontMatter returns content without its front matter block. Content
// with a malformed block is returned unchanged.
func StripFrontMatter(content string) string {
	_, body, had, err := SplitFrontMatter(content)
	if err != nil || !had {
		return content
	}
	return body
}

// FrontMatter strips front matter from every page before it is compiled and
// keeps the attributes of the last page seen.
type FrontMatter struct {
	mu    sync.RWMutex
	attrs map[string]any
}

func NewFrontMatter() *FrontMatter { return &FrontMatter{attrs: map[string]any{}} }

func (f *FrontMatter) Name() string { return "front-matter" }

func (f *FrontMatter) Install(r *Registry) { r.BeforeEach(f.beforeEach) }

func (f *FrontMatter) beforeEach(_ context.Context, content string) (string, error) {
	raw, body, had, err := SplitFrontMatter(content)
	if err != nil {
		f.set(map[string]any{})
		return content, err
	}
	attrs := map[string]any{}
	if had {
		if attrs, err = ParseFrontMatter(raw); err != nil {
			slog.Warn("Ignoring unreadable front matter", logfields.Error(err))
			attrs = map[string]any{}
		}
	}
	f.set(attrs)
	return body, nil
}

func (f *FrontMatter) set(attrs map[string]any) {
	f.mu.Lock()
	f.attrs = attrs
	f.mu.Unlock()
}

// Attributes returns the front matter of the last page.
func (f *FrontMatter) Attributes() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]any, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out
}

// Title returns the last page's `title` attribute.
func (f *FrontMatter) Title() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.attrs["title"].(string); ok {
		return s
	}
	return ""
}
