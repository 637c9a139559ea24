package render

import (
	"regexp"
	"strings"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/config"
)

// UpdatedPlaceholder is replaced with the page's last-modified time.
const UpdatedPlaceholder = "{livedocs-updated}"

// dateTokens maps braced tokens to Go layout components.
var dateTokens = map[string]string{
	"YYYY": "2006",
	"YY":   "06",
	"MMMM": "January",
	"MMM":  "Jan",
	"MM":   "01",
	"DD":   "02",
	"HH":   "15",
	"mm":   "04",
	"ss":   "05",
	"fff":  "000",
}

var dateToken = regexp.MustCompile(`\{(YYYY|YY|MMMM|MMM|MM|DD|HH|mm|ss|fff)\}`)

// datePresets are named shortcuts for common formats.
var datePresets = map[string]string{
	"iso":      "{YYYY}-{MM}-{DD}",
	"european": "{DD}/{MM}/{YYYY}",
	"us":       "{MM}/{DD}/{YYYY}",
	"long":     "{MMMM} {DD}, {YYYY}",
}

// FormatDate renders t with a format such as "{YYYY}-{MM}-{DD} {HH}:{mm}" or
// a preset name. Text outside braces is kept literally.
func FormatDate(format string, t time.Time) string {
	if preset, ok := datePresets[strings.ToLower(format)]; ok {
		format = preset
	}
	return dateToken.ReplaceAllStringFunc(format, func(tok string) string {
		if tok == "{fff}" {
			return t.Format(".000")[1:]
		}
		return t.Format(dateTokens[tok[1:len(tok)-1]])
	})
}

// FormatUpdated substitutes the placeholder in html. Pages without a known
// modification time keep the placeholder.
func FormatUpdated(html string, meta PageMeta, f config.FormatUpdated) string {
	if !strings.Contains(html, UpdatedPlaceholder) {
		return html
	}
	if meta.UpdatedAt.IsZero() && meta.LastModified == "" {
		return html
	}
	var updated string
	switch {
	case f.Func != nil && !meta.UpdatedAt.IsZero():
		updated = f.Func(meta.UpdatedAt)
	case f.Layout != "" && !meta.UpdatedAt.IsZero():
		updated = FormatDate(f.Layout, meta.UpdatedAt)
	case meta.LastModified != "":
		updated = meta.LastModified
	default:
		updated = meta.UpdatedAt.UTC().Format(time.RFC1123)
	}
	return strings.ReplaceAll(html, UpdatedPlaceholder, updated)
}
