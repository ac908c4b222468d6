package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips all markup from user-supplied text and trims it. Entities
// produced by the policy are unescaped again because clients render text, not
// HTML.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
