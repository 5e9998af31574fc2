// Package topic implements topic-key derivation and persona-aware topic
// selection.
package topic

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// TrendPrefix marks synthetic keys for link-less trending topics.
const TrendPrefix = "trend:"

// Tracking parameters removed by NormalizeURL.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid",
}

var lower = cases.Lower(language.Und)

// NormalizeURL strips tracking parameters and the fragment. Unparseable
// input is returned trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// FoldTitle lowercases, NFC-normalizes and collapses whitespace.
func FoldTitle(title string) string {
	return strings.Join(strings.Fields(lower.String(norm.NFC.String(title))), " ")
}

// TrendKey returns the synthetic key for a link-less topic title.
func TrendKey(title string) string {
	return TrendPrefix + FoldTitle(title)
}

// Key returns the stable seen-tracking key of a candidate: its explicit key,
// else its normalized link, else a synthetic trend key from the title.
func Key(c *types.TopicCandidate) string {
	if c.Key != "" {
		return c.Key
	}
	if link := NormalizeURL(c.Link); link != "" {
		return link
	}
	if strings.TrimSpace(c.Title) == "" {
		return ""
	}
	return TrendKey(c.Title)
}
