// Package htmlsanitize strips markup from user-entered profile text.
//
// Profile fields (first name, last name, mobile) are plain text. Anything that
// looks like HTML is removed before the value is stored so it can be rendered
// in templates and JSON without further escaping concerns.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// StripTags removes every HTML element from s and returns the remaining text.
// Entities produced by the policy are decoded so "O'Brien" stays "O'Brien".
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no HTML tags.
func IsPlainText(s string) bool {
	if s == "" {
		return true
	}
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}
