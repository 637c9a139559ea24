package render

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var headingAnchorClass = regexp.MustCompile(`^[\w -]+$`)

// NewSanitizer returns the policy applied to HTML compiled from another
// origin. It keeps the markup the compiler emits (anchors, highlighting
// classes, data attributes, media) and drops scripts and event handlers.
func NewSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowDataAttributes()
	p.AllowAttrs("class").Matching(headingAnchorClass).Globally()
	p.AllowAttrs("target", "rel").OnElements("a")
	p.AllowAttrs("width", "height").OnElements("img", "iframe", "video")
	p.AllowElements("video", "audio", "source")
	p.AllowAttrs("src", "controls", "type").OnElements("video", "audio", "source")
	p.AllowIFrames()
	return p
}
