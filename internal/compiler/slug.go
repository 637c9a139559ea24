package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	slugTags        = regexp.MustCompile(`<[^>]+>`)
	slugPunctuation = regexp.MustCompile(`[\x{2000}-\x{206F}\x{2E00}-\x{2E7F}\\'!"#$%&()*+,./:;<=>?@\[\]^` + "`" + `{|}~]`)
	slugSpaces      = regexp.MustCompile(`\s`)
	slugDashes      = regexp.MustCompile(`-+`)
	slugLeadDigit   = regexp.MustCompile(`^(\d)`)
	lower           = cases.Lower(language.Und)
)

// slugger turns heading text into anchor ids, numbering repeats.
type slugger struct {
	seen map[string]int
}

func newSlugger() *slugger { return &slugger{seen: map[string]int{}} }

func (s *slugger) slug(text string) string {
	slug := Slugify(text)
	count, ok := s.seen[slug]
	if ok {
		count++
	}
	s.seen[slug] = count
	if count > 0 {
		slug += "-" + strconv.Itoa(count)
	}
	return slug
}

// Slugify converts heading text to an anchor id without de-duplication.
func Slugify(text string) string {
	slug := lower.String(strings.TrimSpace(text))
	slug = slugTags.ReplaceAllString(slug, "")
	slug = slugPunctuation.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return slugLeadDigit.ReplaceAllString(slug, "_$1")
}
