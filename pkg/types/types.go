// Package types defines core types for the integral persona bots.
package types

import (
	"strings"
	"time"
)

// PersonaID identifies one configured persona, e.g. "RUTH".
type PersonaID string

// Priority orders notifications during triage.
type Priority int

const (
	PriorityAudience Priority = 1 // Human audience mention or reply
	PriorityPersona  Priority = 2 // Another persona talking to us
)

// Credentials holds the login material for one persona account.
type Credentials struct {
	Handle      string `json:"handle"`
	AppPassword string `json:"-"`
}

// Templates are the canned building blocks used when no language model is
// available.
type Templates struct {
	Opener []string `json:"opener" yaml:"opener"`
	Take   []string `json:"take" yaml:"take"`
	Closer []string `json:"closer" yaml:"closer"`
}

// PersonaProfile defines the unique voice and topic affinity of a persona.
type PersonaProfile struct {
	ID    PersonaID `json:"id" yaml:"id"`
	Stage string    `json:"stage" yaml:"stage"` // Developmental stage label
	Color string    `json:"color,omitempty" yaml:"color,omitempty"`

	// Voice
	Voice     string    `json:"voice" yaml:"voice"`
	Stance    []string  `json:"stance" yaml:"stance"`
	Templates Templates `json:"templates" yaml:"templates"`
	Callouts  []string  `json:"callouts,omitempty" yaml:"callouts,omitempty"` // Prefixes used when tagging a peer
	Question  string    `json:"question,omitempty" yaml:"question,omitempty"` // Closing question for template replies

	// Topic affinity
	Keywords     []string `json:"keywords" yaml:"keywords"`
	Sources      []string `json:"sources" yaml:"sources"`
	Boost        float64  `json:"boost" yaml:"boost"`
	CultureBoost bool     `json:"culture_boost,omitempty" yaml:"culture_boost,omitempty"`

	// Peers this persona prefers to pull into a conversation
	PeerPreferences []PersonaID `json:"peer_preferences,omitempty" yaml:"peer_preferences,omitempty"`
}

// Label returns the display label, e.g. "Miracle • RUTH".
func (p *PersonaProfile) Label() string {
	if p.Stage == "" {
		return string(p.ID)
	}
	return p.Stage + " • " + string(p.ID)
}

// TopicCandidate is one piece of content a persona could post about.
// Candidates are created fresh each run; only Key survives in state.
type TopicCandidate struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	Link        string     `json:"link,omitempty"` // Empty for link-less trending topics
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Trending    bool       `json:"trending,omitempty"`
}

// NotificationCandidate is an inbound mention or reply that may need an
// answer. Only Key survives in state.
type NotificationCandidate struct {
	Key                string    `json:"key"`
	CID                string    `json:"cid,omitempty"`
	Reason             string    `json:"reason,omitempty"` // mention or reply
	AuthorHandle       string    `json:"author_handle"`
	IsFromKnownPersona bool      `json:"is_from_known_persona"`
	Priority           Priority  `json:"priority"`
	IndexedAt          time.Time `json:"indexed_at"`
	ContentText        string    `json:"content_text"`
}

// RunBudget caps the work done in one run across all personas.
type RunBudget struct {
	MaxPostsPerRun   int `json:"max_posts_per_run"`
	MaxRepliesPerRun int `json:"max_replies_per_run"`
}

// ThreadContext describes the post a reply will attach to.
type ThreadContext struct {
	RootKey      string `json:"root_key"`
	RootCID      string `json:"root_cid"`
	ParentKey    string `json:"parent_key"`
	ParentCID    string `json:"parent_cid"`
	AuthorHandle string `json:"author_handle"`
	Text         string `json:"text"`
}

// PostRef identifies a created post or reply.
type PostRef struct {
	Key string `json:"key"`
	CID string `json:"cid,omitempty"`
}

// Engagement is the public interaction count of one post.
type Engagement struct {
	Likes   int `json:"likes"`
	Shares  int `json:"shares"`
	Replies int `json:"replies"`
}

// Total returns the summed engagement.
func (e Engagement) Total() int {
	return e.Likes + e.Shares + e.Replies
}

// ReplyContext is what the content generator sees about a notification.
type ReplyContext struct {
	Text               string   `json:"text"`
	IsFromKnownPersona bool     `json:"is_from_known_persona"`
	Priority           Priority `json:"priority"`
	AuthorHandle       string   `json:"author_handle"`
}

// NormalizeHandle strips a leading "@" and surrounding whitespace.
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
