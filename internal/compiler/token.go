package compiler

import (
	"maps"
	"sort"
	"strings"
)

// TokenKind classifies a top-level markdown block.
type TokenKind string

const (
	KindHTML       TokenKind = "html"
	KindParagraph  TokenKind = "paragraph"
	KindHeading    TokenKind = "heading"
	KindCode       TokenKind = "code"
	KindList       TokenKind = "list"
	KindBlockquote TokenKind = "blockquote"
	KindHR         TokenKind = "hr"
	KindTable      TokenKind = "table"
	KindBlock      TokenKind = "block"
)

// Token is one top-level block. Text is markdown source, except for html
// tokens whose Text is emitted verbatim.
type Token struct {
	Kind  TokenKind `json:"kind"`
	Text  string    `json:"text"`
	Depth int       `json:"depth,omitempty"`
	Lang  string    `json:"lang,omitempty"`
}

// Link is a reference-style link definition.
type Link struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
}

// TokenStream is an ordered token list plus the reference definitions shared
// by every token in it.
type TokenStream struct {
	Tokens []Token         `json:"tokens"`
	Links  map[string]Link `json:"links"`
}

// ShallowCopy copies the token slice and shares the Links map.
func (ts *TokenStream) ShallowCopy() *TokenStream {
	out := &TokenStream{Tokens: make([]Token, len(ts.Tokens)), Links: ts.Links}
	copy(out.Tokens, ts.Tokens)
	return out
}

// MergeLinks copies other's definitions into ts; other wins on conflicts.
func (ts *TokenStream) MergeLinks(other map[string]Link) {
	if ts.Links == nil {
		ts.Links = make(map[string]Link, len(other))
	}
	maps.Copy(ts.Links, other)
}

// Splice replaces the token at index with replacement and returns the index
// shift the replacement caused (len(replacement)-1).
func (ts *TokenStream) Splice(index int, replacement []Token) int {
	out := make([]Token, 0, len(ts.Tokens)+len(replacement)-1)
	out = append(out, ts.Tokens[:index]...)
	out = append(out, replacement...)
	out = append(out, ts.Tokens[index+1:]...)
	ts.Tokens = out
	return len(replacement) - 1
}

// linkDefinitions renders Links as reference definitions, sorted by label.
func linkDefinitions(links map[string]Link) string {
	if len(links) == 0 {
		return ""
	}
	labels := make([]string, 0, len(links))
	for l := range links {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	var b strings.Builder
	for _, label := range labels {
		l := links[label]
		b.WriteString("[" + label + "]: <" + l.Href + ">")
		if l.Title != "" {
			if strings.Contains(l.Title, `"`) {
				b.WriteString(" (" + l.Title + ")")
			} else {
				b.WriteString(` "` + l.Title + `"`)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
