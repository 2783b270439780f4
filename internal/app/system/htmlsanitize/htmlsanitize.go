// Package htmlsanitize strips markup from user-supplied text such as pool
// names, topics and circle names before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag from s and returns the remaining text with
// entities decoded and surrounding space trimmed. Script and style bodies
// are dropped along with their tags.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	open := strings.IndexByte(s, '<')
	return open < 0 || strings.IndexByte(s[open:], '>') < 0
}
