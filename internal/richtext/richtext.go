// Package richtext treats tile content (editor HTML) as text for search,
// previews and exports.
package richtext

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	blockRe = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6])\s*/?>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
	slugRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// PlainText strips markup and entities from content and collapses
// whitespace. Block-level closers become spaces so words do not run
// together.
func PlainText(content string) string {
	s := blockRe.ReplaceAllString(content, " ")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Preview returns at most n runes of the plain text of content.
func Preview(content string, n int) string {
	s := PlainText(content)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Contains reports whether the plain text of content contains q, ignoring
// case.
func Contains(content, q string) bool {
	return strings.Contains(strings.ToLower(PlainText(content)), strings.ToLower(q))
}

// AppendNote appends a bullet paragraph holding text to content.
func AppendNote(content, text string) string {
	return content + "<p>• " + html.EscapeString(strings.TrimSpace(text)) + "</p>"
}

// Slug derives a lowercase, dash separated identifier from title.
func Slug(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "tile"
	}
	return s
}
