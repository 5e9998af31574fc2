package bsky

import (
	"context"
	"regexp"
	"strings"
)

// Facet annotates a byte range of post text.
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

// FacetIndex is a UTF-8 byte range, end exclusive.
type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// FacetFeature is a link or mention feature.
type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri,omitempty"`
	DID  string `json:"did,omitempty"`
}

const (
	linkFeature    = "app.bsky.richtext.facet#link"
	mentionFeature = "app.bsky.richtext.facet#mention"
)

var (
	linkPattern    = regexp.MustCompile(`https?://[^\s<>"]+`)
	mentionPattern = regexp.MustCompile(`(?:^|[\s(])(@[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)+)`)
)

// Resolver maps a handle to a DID.
type Resolver func(ctx context.Context, handle string) (string, error)

// DetectFacets finds links and mentions in text. Mentions whose handle does
// not resolve are left as plain text.
func DetectFacets(ctx context.Context, text string, resolve Resolver) []Facet {
	var facets []Facet

	for _, m := range linkPattern.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		uri := strings.TrimRight(text[start:end], ".,;:!?)]'")
		end = start + len(uri)
		facets = append(facets, Facet{
			Index:    FacetIndex{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{Type: linkFeature, URI: uri}},
		})
	}

	if resolve == nil {
		return facets
	}
	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if insideAny(facets, start) {
			continue
		}
		handle := text[start+1 : end]
		did, err := resolve(ctx, handle)
		if err != nil || did == "" {
			continue
		}
		facets = append(facets, Facet{
			Index:    FacetIndex{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{Type: mentionFeature, DID: did}},
		})
	}
	return facets
}

func insideAny(facets []Facet, pos int) bool {
	for _, f := range facets {
		if pos >= f.Index.ByteStart && pos < f.Index.ByteEnd {
			return true
		}
	}
	return false
}
