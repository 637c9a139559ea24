package compiler

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	gtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	thematicLine = regexp.MustCompile(`^ {0,3}([-*_])( *[-*_]){2,}[ \t]*$`)
	fenceLine    = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
	refDefLine   = regexp.MustCompile(`^ {0,3}\[[^\]]+\]:\s*\S+`)
	atxLine      = regexp.MustCompile(`^ {0,3}#`)
)

// Lex splits markdown into top-level block tokens and collects its reference
// link definitions. Each token keeps the exact source text of its block.
func (c *Compiler) Lex(text string) *TokenStream {
	src := []byte(text)
	pc := parser.NewContext()
	doc := c.md.Parser().Parse(gtext.NewReader(src), parser.WithContext(pc))

	ts := &TokenStream{Links: map[string]Link{}}
	for _, ref := range pc.References() {
		label := strings.ToLower(string(util.ToLinkReference(ref.Label())))
		ts.Links[label] = Link{Href: string(ref.Destination()), Title: string(ref.Title())}
	}

	lines := splitLines(text)
	var nodes []ast.Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		nodes = append(nodes, n)
	}
	starts := make([]int, len(nodes))
	for i, n := range nodes {
		starts[i] = knownStartLine(n, lines)
	}
	for i, n := range nodes {
		if starts[i] >= 0 {
			continue
		}
		from := 0
		if i > 0 {
			from = afterBlock(nodes[i-1], starts[i-1], lines)
		}
		starts[i] = searchStart(n, lines, from)
	}

	for i, n := range nodes {
		if onlyDefinitions(n) {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(nodes); j++ {
			if starts[j] > starts[i] {
				end = starts[j]
				break
			}
		}
		tok := Token{Kind: kindOf(n)}
		tok.Text = blockText(n, src, lines, starts[i], end)
		switch b := n.(type) {
		case *ast.Heading:
			tok.Depth = b.Level
		case *ast.FencedCodeBlock:
			tok.Lang = string(b.Language(src))
		}
		ts.Tokens = append(ts.Tokens, tok)
	}
	return ts
}

// onlyDefinitions reports whether n is what goldmark leaves behind for a
// paragraph made only of link reference definitions. Those live in Links.
func onlyDefinitions(n ast.Node) bool {
	return n.Kind() == ast.KindTextBlock && n.Lines().Len() == 0 && n.ChildCount() == 0
}

func kindOf(n ast.Node) TokenKind {
	switch n.Kind() {
	case ast.KindHTMLBlock:
		return KindHTML
	case ast.KindParagraph:
		return KindParagraph
	case ast.KindHeading:
		return KindHeading
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		return KindCode
	case ast.KindList:
		return KindList
	case ast.KindBlockquote:
		return KindBlockquote
	case ast.KindThematicBreak:
		return KindHR
	case east.KindTable:
		return KindTable
	default:
		return KindBlock
	}
}

// line is one source line with its byte offsets; stop excludes the newline.
type line struct {
	start, stop int
	text        string
}

func splitLines(text string) []line {
	var out []line
	pos := 0
	for pos <= len(text) {
		i := strings.IndexByte(text[pos:], '\n')
		if i < 0 {
			if pos < len(text) {
				out = append(out, line{start: pos, stop: len(text), text: text[pos:]})
			}
			break
		}
		out = append(out, line{start: pos, stop: pos + i, text: text[pos : pos+i]})
		pos += i + 1
	}
	return out
}

func lineOf(lines []line, offset int) int {
	return sort.Search(len(lines), func(i int) bool { return lines[i].stop >= offset })
}

// knownStartLine derives the first source line of n from the segments in its
// subtree, or -1 when the node carries no positions.
func knownStartLine(n ast.Node, lines []line) int {
	best := -1
	visit := func(off int) {
		if best < 0 || off < best {
			best = off
		}
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock && c.Lines().Len() > 0 {
			visit(c.Lines().At(0).Start)
		}
		switch t := c.(type) {
		case *ast.Text:
			visit(t.Segment.Start)
		case *ast.FencedCodeBlock:
			if t.Info != nil {
				visit(t.Info.Segment.Start)
			}
		}
		return ast.WalkContinue, nil
	})
	if best < 0 {
		return -1
	}
	start := lineOf(lines, best)
	if fc, ok := n.(*ast.FencedCodeBlock); ok && fc.Info == nil {
		start--
	}
	if start < 0 {
		start = 0
	}
	return start
}

// afterBlock returns the first line that can start the block following n.
func afterBlock(n ast.Node, start int, lines []line) int {
	last := start
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		last = lineOf(lines, n.Lines().At(n.Lines().Len()-1).Start)
	}
	switch n.Kind() {
	case ast.KindHeading:
		if start < len(lines) && !atxLine.MatchString(lines[start].text) {
			last++
		}
	case ast.KindFencedCodeBlock:
		for i := last + 1; i < len(lines); i++ {
			if fenceLine.MatchString(lines[i].text) {
				last = i
				break
			}
		}
	case ast.KindTextBlock:
		for last+1 < len(lines) && refDefLine.MatchString(lines[last+1].text) {
			last++
		}
	}
	return last + 1
}

// searchStart finds the first line at or after from that can open n.
func searchStart(n ast.Node, lines []line, from int) int {
	for i := from; i < len(lines); i++ {
		t := lines[i].text
		switch n.Kind() {
		case ast.KindThematicBreak:
			if thematicLine.MatchString(t) {
				return i
			}
		case ast.KindFencedCodeBlock:
			if fenceLine.MatchString(t) {
				return i
			}
		default:
			if strings.TrimSpace(t) != "" {
				return i
			}
		}
	}
	return min(from, len(lines))
}

// blockText slices the source of n from line start up to (not including)
// line end, dropping trailing blank lines and reference definitions.
func blockText(n ast.Node, src []byte, lines []line, start, end int) string {
	if start >= len(lines) || start >= end {
		return ""
	}
	switch b := n.(type) {
	case *ast.Paragraph, *ast.CodeBlock:
		if b.Lines().Len() > 0 {
			end = min(end, lineOf(lines, b.Lines().At(b.Lines().Len()-1).Start)+1)
		}
	case *ast.HTMLBlock:
		if b.HasClosure() {
			end = min(end, lineOf(lines, b.ClosureLine.Start)+1)
		} else if b.Lines().Len() > 0 {
			end = min(end, lineOf(lines, b.Lines().At(b.Lines().Len()-1).Start)+1)
		}
	case *ast.FencedCodeBlock:
		content := start
		if b.Lines().Len() > 0 {
			content = lineOf(lines, b.Lines().At(b.Lines().Len()-1).Start)
		}
		for i := content + 1; i < end; i++ {
			if fenceLine.MatchString(lines[i].text) {
				end = i + 1
				break
			}
		}
	}

	for end > start && strings.TrimSpace(lines[end-1].text) == "" {
		end--
	}
	if n.Kind() != ast.KindFencedCodeBlock && n.Kind() != ast.KindCodeBlock {
		for end > start+1 && (refDefLine.MatchString(lines[end-1].text) || strings.TrimSpace(lines[end-1].text) == "") {
			end--
		}
	}
	if end <= start {
		return ""
	}
	return string(src[lines[start].start:lines[end-1].stop])
}
