// Package learning records post outcomes and turns engagement history into
// per-keyword topic biases.
package learning

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Kind distinguishes top-level posts from replies.
type Kind string

const (
	KindPost  Kind = "post"
	KindReply Kind = "reply"
)

// Outcome is one published post or reply and its latest engagement.
type Outcome struct {
	PersonaID  types.PersonaID
	Kind       Kind
	PostKey    string
	TopicKey   string
	Text       string
	Engagement types.Engagement
	RecordedAt time.Time
}

// Biases maps a lowercased keyword to an additive topic score.
type Biases map[string]float64

// Store persists outcomes and derives biases from them.
type Store interface {
	// Record inserts or updates the outcome for PostKey. Empty Text and
	// TopicKey keep the stored values.
	Record(ctx context.Context, o Outcome) error
	Recommend(ctx context.Context, id types.PersonaID) (Biases, error)
	// RecentPostKeys lists the persona's newest post keys first.
	RecentPostKeys(ctx context.Context, id types.PersonaID, limit int) ([]string, error)
	Close() error
}

// Thresholds for turning keyword effectiveness into a bias.
const (
	MinKeywordUses     = 2
	MinEffectiveness   = 1.3
	BiasPerEffect      = 0.2
	MaxBias            = 0.5
	maxKeywordsPerPost = 10
)

// BiasFor converts a keyword's relative effectiveness into a bias, or 0.
func BiasFor(uses int, effectiveness float64) float64 {
	if uses < MinKeywordUses || effectiveness <= MinEffectiveness {
		return 0
	}
	return min(MaxBias, BiasPerEffect*(effectiveness-1))
}

var (
	nonWord   = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	lower     = cases.Lower(language.Und)
	stopWords = map[string]bool{
		"this": true, "that": true, "with": true, "from": true, "they": true,
		"have": true, "been": true, "their": true, "would": true, "there": true,
		"could": true, "should": true, "will": true, "just": true,
	}
)

// Keywords extracts up to ten distinct words longer than three letters,
// skipping stop words and URLs.
func Keywords(text string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") || strings.HasPrefix(field, "@") {
			continue
		}
		cleaned := nonWord.ReplaceAllString(lower.String(norm.NFC.String(field)), " ")
		for _, w := range strings.Fields(cleaned) {
			if len([]rune(w)) <= 3 || stopWords[w] || seen[w] {
				continue
			}
			seen[w] = true
			words = append(words, w)
			if len(words) == maxKeywordsPerPost {
				return words
			}
		}
	}
	return words
}

// Nop is a Store that remembers nothing.
type Nop struct{}

func (Nop) Record(context.Context, Outcome) error { return nil }

func (Nop) Recommend(context.Context, types.PersonaID) (Biases, error) { return Biases{}, nil }

func (Nop) RecentPostKeys(context.Context, types.PersonaID, int) ([]string, error) { return nil, nil }

func (Nop) Close() error { return nil }
