// Package sanitize strips unsafe markup from free-text note fields before
// they are persisted, so stored content is already safe to render
// unescaped. It is never applied on read.
package sanitize

import "github.com/microcosm-cc/bluemonday"

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ul", "ol", "li",
		"code", "pre", "a", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowStandardURLs()
	p.AllowAttrs("class").OnElements("code", "pre")
	return p
}

// HTML reduces the input to the allow-listed tag and attribute set.
// Disallowed tags are stripped with their text kept, except script/style
// whose content is removed entirely. Empty input yields an empty string.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
