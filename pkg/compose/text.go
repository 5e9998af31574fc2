package compose

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars keeps posts under the platform's 300 grapheme limit with
// headroom for mentions and a trailing URL line.
const DefaultMaxChars = 280

var urlLine = regexp.MustCompile(`(?i)^https?://`)

// Length counts runes, which is what the clamp functions budget against.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// ClampText shortens text to at most max runes, cutting on a word boundary
// when one exists past the first 60 runes and appending an ellipsis.
func ClampText(text string, max int) string {
	if Length(text) <= max {
		return text
	}
	runes := []rune(text)
	trimmed := runes[:max-1]
	cut := -1
	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] == ' ' {
			cut = i
			break
		}
	}
	if cut > 60 {
		trimmed = trimmed[:cut]
	}
	return strings.TrimRight(string(trimmed), " \t\n") + "…"
}

// ClampPreserveURL clamps text like ClampText, except that a URL on the last
// line is kept intact and only the body above it is shortened.
func ClampPreserveURL(text string, max int) string {
	lines := strings.Split(text, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" || !urlLine.MatchString(last) {
		return ClampText(text, max)
	}
	if Length(text) <= max {
		return text
	}
	core := strings.TrimRight(strings.Join(lines[:len(lines)-1], "\n"), " \t\n")
	budget := max - (1 + Length(last))
	if budget < 40 {
		budget = 40
	}
	return ClampText(core, budget) + "\n" + last
}

// linkOf returns the URL to attach for a topic, or "" for link-less and
// synthetic trending topics.
func linkOf(link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "trend:") {
		return ""
	}
	return link
}

// ensureLink appends link on its own line when the text does not contain it.
func ensureLink(text, link string) string {
	if link == "" || strings.Contains(text, link) {
		return text
	}
	return strings.TrimRight(text, " \t\n") + "\n" + link
}
