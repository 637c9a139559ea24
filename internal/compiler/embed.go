package compiler

import (
	"html"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/livedocs/internal/router"
)

// EmbedType says how an included resource is turned into page content.
type EmbedType string

const (
	EmbedMarkdown EmbedType = "markdown"
	EmbedCode     EmbedType = "code"
	EmbedMermaid  EmbedType = "mermaid"
	EmbedIframe   EmbedType = "iframe"
	EmbedVideo    EmbedType = "video"
	EmbedAudio    EmbedType = "audio"
)

// Embed describes one include directive after classification. Fetchable kinds
// carry URL; media kinds carry ready HTML.
type Embed struct {
	Type     EmbedType
	URL      string
	Lang     string
	HTML     string
	Fragment string
}

// Fetchable reports whether the embed content must be fetched.
func (e Embed) Fetchable() bool { return e.HTML == "" && e.URL != "" }

// EmbedDirective is an include found in a token.
type EmbedDirective struct {
	// Index is the position of the token holding the directive.
	Index int
	Embed Embed
	// Source is the link markup the directive was parsed from.
	Source string
}

// Options are ":key=value" flags parsed from a link title.
type Options map[string]string

// Has reports whether key was given, with or without a value.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

var configFlag = regexp.MustCompile(`(?:^|\s):([\w-]+:?)=?([\w%-]+)?`)

// GetAndRemoveConfig splits ":key=value" flags off a link title. Keys
// containing a colon are left in place. Bare flags map to "true".
func GetAndRemoveConfig(title string) (string, Options) {
	opts := Options{}
	if title == "" {
		return "", opts
	}
	title = strings.TrimPrefix(strings.TrimPrefix(title, `"`), `'`)
	title = strings.TrimSuffix(strings.TrimSuffix(title, `"`), `'`)
	title = configFlag.ReplaceAllStringFunc(title, func(m string) string {
		sub := configFlag.FindStringSubmatch(m)
		key, value := sub[1], sub[2]
		if strings.Contains(key, ":") {
			return m
		}
		if value == "" {
			value = "true"
		}
		opts[key] = strings.ReplaceAll(value, "&quot;", "")
		return ""
	})
	return strings.TrimSpace(title), opts
}

// CompileEmbed classifies an include link. It returns false when title does
// not carry ":include". Relative hrefs resolve against the current page.
func (c *Compiler) CompileEmbed(href, title string) (Embed, bool) {
	title, opts := GetAndRemoveConfig(title)
	if !opts.Has("include") {
		return Embed{}, false
	}
	if !router.IsAbsolutePath(href) {
		href = router.JoinPath(c.router.GetBasePath(), router.GetParentPath(c.router.GetCurrentPath()), href)
	}

	kind := EmbedType(opts["type"])
	switch kind {
	case EmbedMarkdown, EmbedCode, EmbedMermaid, EmbedIframe, EmbedVideo, EmbedAudio:
	default:
		kind = classifyEmbed(href)
	}
	e := compileMedia(kind, href, title)
	e.Fragment = opts["fragment"]
	return e, true
}

var (
	markdownExt = regexp.MustCompile(`\.(md|markdown)`)
	mermaidExt  = regexp.MustCompile(`\.mmd`)
	htmlExt     = regexp.MustCompile(`\.html?`)
	videoExt    = regexp.MustCompile(`\.(mp4|ogg)`)
	audioExt    = regexp.MustCompile(`\.mp3`)
	trailingExt = regexp.MustCompile(`\.(\w+)$`)
)

func classifyEmbed(href string) EmbedType {
	switch {
	case markdownExt.MatchString(href):
		return EmbedMarkdown
	case mermaidExt.MatchString(href):
		return EmbedMermaid
	case htmlExt.MatchString(href):
		return EmbedIframe
	case videoExt.MatchString(href):
		return EmbedVideo
	case audioExt.MatchString(href):
		return EmbedAudio
	default:
		return EmbedCode
	}
}

func compileMedia(kind EmbedType, href, title string) Embed {
	src := html.EscapeString(href)
	switch kind {
	case EmbedIframe:
		return Embed{Type: kind, HTML: `<iframe src="` + src + `" ` + or(title, "width=100% height=400") + `></iframe>`}
	case EmbedVideo:
		return Embed{Type: kind, HTML: `<video src="` + src + `" ` + or(title, "controls") + `>Not Support</video>`}
	case EmbedAudio:
		return Embed{Type: kind, HTML: `<audio src="` + src + `" ` + or(title, "controls") + `>Not Support</audio>`}
	case EmbedCode:
		lang := title
		if lang == "" {
			if m := trailingExt.FindStringSubmatch(stripQuery(href)); m != nil {
				lang = m[1]
			}
		}
		if lang == "md" {
			lang = "markdown"
		}
		return Embed{Type: kind, URL: href, Lang: lang}
	default:
		return Embed{Type: kind, URL: href}
	}
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func stripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// inlineLink matches [text](href "title") and ![alt](href 'title').
var inlineLink = regexp.MustCompile(`!?\[([^\]]*)\]\(\s*(<[^>]*>|[^\s)]+)(?:\s+("[^"]*"|'[^']*'|\([^)]*\)))?\s*\)`)

// FindEmbeds returns the include directives in text in source order.
func (c *Compiler) FindEmbeds(index int, text string) []EmbedDirective {
	var out []EmbedDirective
	for _, m := range inlineLink.FindAllStringSubmatch(text, -1) {
		href := strings.TrimSuffix(strings.TrimPrefix(m[2], "<"), ">")
		title := m[3]
		if strings.HasPrefix(title, "(") {
			title = strings.TrimSuffix(strings.TrimPrefix(title, "("), ")")
		}
		e, ok := c.CompileEmbed(href, title)
		if !ok {
			continue
		}
		out = append(out, EmbedDirective{Index: index, Embed: e, Source: m[0]})
	}
	return out
}

// ExtractFragment returns the region of text between two "### [name]" or
// "/// [name]" markers, trimmed. It returns "" when the markers are missing.
func ExtractFragment(text, name string) string {
	pattern := regexp.MustCompile(`(?:###|///)\s*\[` + regexp.QuoteMeta(name) + `\]([\s\S]*)(?:###|///)\s*\[` + regexp.QuoteMeta(name) + `\]`)
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// CodePlaceholder stands in for backticks inside fenced code embeds.
const CodePlaceholder = "@LIVEDOCS_QM@"

// FenceCode wraps fetched code in a fence, hiding backticks from the lexer.
func FenceCode(lang, text string) string {
	return "```" + lang + "\n" + strings.ReplaceAll(text, "`", CodePlaceholder) + "\n```\n"
}
