package topic

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// SeenSet answers membership for already-used topic keys.
type SeenSet interface {
	Contains(key string) bool
}

// ProfileLookup resolves a persona id to its profile.
type ProfileLookup interface {
	Profile(id types.PersonaID) (*types.PersonaProfile, bool)
}

var (
	faithTerms   = regexp.MustCompile(`(?i)religion|faith|spiritual|god|jesus|church|theology|christian`)
	cultureTerms = regexp.MustCompile(`(?i)culture|politics|conservative|liberal|progressive|traditional`)
)

// Selector ranks topic candidates by persona affinity.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand

	profiles ProfileLookup

	// Scoring parameters
	Jitter           float64 // Upper bound of the random base score
	SourceWeight     float64 // Fraction of the persona boost granted per source hit
	FaithBonus       float64 // Bonus for general religion/spirituality terms
	CultureBonus     float64 // Bonus for culture terms, for culture-boosted personas
	TopK             int     // Size of the pool the final pick is drawn from
	MinTitleLen      int     // Shorter news titles are rejected
	MinTrendTitleLen int     // Shorter trending titles are rejected
}

// NewSelector creates a selector with default weights. A nil rng uses a
// time-seeded source.
func NewSelector(profiles ProfileLookup, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		rng:              rng,
		profiles:         profiles,
		Jitter:           0.3,
		SourceWeight:     0.5,
		FaithBonus:       0.4,
		CultureBonus:     0.5,
		TopK:             5,
		MinTitleLen:      20,
		MinTrendTitleLen: 3,
	}
}

type scoredTopic struct {
	topic types.TopicCandidate
	score float64
}

// Select picks one unseen candidate for the persona, or nil when nothing
// survives filtering. The returned candidate's Key holds the key that must
// be marked seen.
func (s *Selector) Select(id types.PersonaID, candidates []types.TopicCandidate, seen SeenSet, biases map[string]float64) *types.TopicCandidate {
	return s.pick(id, candidates, seen, biases, s.MinTitleLen)
}

// SelectWithFallback selects from news items first and only falls back to
// the trending pool when no news item survives filtering.
func (s *Selector) SelectWithFallback(id types.PersonaID, items, trending []types.TopicCandidate, seen SeenSet, biases map[string]float64) *types.TopicCandidate {
	if c := s.pick(id, items, seen, biases, s.MinTitleLen); c != nil {
		return c
	}
	pool := make([]types.TopicCandidate, 0, len(trending))
	for _, c := range trending {
		if c.Key == "" && c.Link == "" {
			c.Key = TrendKey(c.Title)
		}
		c.Trending = true
		pool = append(pool, c)
	}
	return s.pick(id, pool, seen, biases, s.MinTrendTitleLen)
}

func (s *Selector) pick(id types.PersonaID, candidates []types.TopicCandidate, seen SeenSet, biases map[string]float64, minTitle int) *types.TopicCandidate {
	profile, _ := s.lookup(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	scored := make([]scoredTopic, 0, len(candidates))
	picked := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := Key(&c)
		if key == "" {
			continue
		}
		if seen != nil && seen.Contains(key) {
			continue
		}
		if _, dup := picked[key]; dup {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(c.Title)) < minTitle {
			continue
		}
		picked[key] = struct{}{}
		c.Key = key
		scored = append(scored, scoredTopic{topic: c, score: s.score(&c, profile, biases)})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	k := s.TopK
	if k <= 0 || k > len(scored) {
		k = len(scored)
	}
	chosen := scored[s.rng.Intn(k)].topic
	return &chosen
}

func (s *Selector) lookup(id types.PersonaID) (*types.PersonaProfile, bool) {
	if s.profiles == nil {
		return nil, false
	}
	return s.profiles.Profile(id)
}

// score computes persona affinity. Callers hold mu.
func (s *Selector) score(c *types.TopicCandidate, profile *types.PersonaProfile, biases map[string]float64) float64 {
	score := s.rng.Float64() * s.Jitter

	text := FoldTitle(c.Title + " " + c.Source)
	source := FoldTitle(c.Source)

	if profile != nil {
		// Keyword matches in title and source
		for _, kw := range profile.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				score += profile.Boost
			}
		}
		// Preferred sources
		for _, src := range profile.Sources {
			if src != "" && strings.Contains(source, strings.ToLower(src)) {
				score += profile.Boost * s.SourceWeight
			}
		}
	}

	if faithTerms.MatchString(text) {
		score += s.FaithBonus
	}
	if profile != nil && profile.CultureBoost && cultureTerms.MatchString(text) {
		score += s.CultureBonus
	}

	// Learned keyword biases
	title := FoldTitle(c.Title)
	for kw, bias := range biases {
		if kw != "" && strings.Contains(title, kw) {
			score += bias
		}
	}
	return score
}

// Union reports a key as seen if any of its sets contains it.
type Union []SeenSet

// Contains implements SeenSet.
func (u Union) Contains(key string) bool {
	for _, s := range u {
		if s != nil && s.Contains(key) {
			return true
		}
	}
	return false
}

// Keys is a plain in-memory SeenSet.
type Keys map[string]struct{}

// Contains implements SeenSet.
func (k Keys) Contains(key string) bool {
	_, ok := k[key]
	return ok
}

// Add inserts key.
func (k Keys) Add(key string) {
	k[key] = struct{}{}
}
