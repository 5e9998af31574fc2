package topic

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

type profileMap map[types.PersonaID]*types.PersonaProfile

func (m profileMap) Profile(id types.PersonaID) (*types.PersonaProfile, bool) {
	p, ok := m[id]
	return p, ok
}

func testProfiles() profileMap {
	return profileMap{
		"RUTH": {
			ID:       "RUTH",
			Keywords: []string{"miracle", "healing", "prayer"},
			Sources:  []string{"faithwire"},
			Boost:    0.8,
		},
		"BRYCE": {
			ID:           "BRYCE",
			Keywords:     []string{"battle", "justice"},
			Boost:        0.7,
			CultureBoost: true,
		},
	}
}

func TestSelect_SkipsSeenTopic(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(1)))
	seen := Keys{"https://a.example/1": {}}
	candidates := []types.TopicCandidate{
		{Key: "https://a.example/1", Title: "Old item, long enough title"},
		{Key: "https://b.example/2", Title: "New item, long enough title here"},
	}

	got := sel.Select("RUTH", candidates, seen, nil)
	if got == nil {
		t.Fatal("expected a candidate")
	}
	if got.Key != "https://b.example/2" {
		t.Errorf("selected %s, want https://b.example/2", got.Key)
	}
}

func TestSelect_NeverReturnsSeenKey(t *testing.T) {
	candidates := make([]types.TopicCandidate, 0, 12)
	for i := 0; i < 12; i++ {
		candidates = append(candidates, types.TopicCandidate{
			Link:  fmt.Sprintf("https://news.example/%d", i),
			Title: fmt.Sprintf("A reasonably long headline about prayer %d", i),
		})
	}
	seen := Keys{}
	for i := 0; i < 11; i++ {
		seen.Add(fmt.Sprintf("https://news.example/%d", i))
	}

	for seed := int64(0); seed < 50; seed++ {
		sel := NewSelector(testProfiles(), rand.New(rand.NewSource(seed)))
		got := sel.Select("RUTH", candidates, seen, nil)
		if got == nil {
			t.Fatalf("seed %d: expected the one unseen candidate", seed)
		}
		if seen.Contains(got.Key) {
			t.Fatalf("seed %d: returned seen key %s", seed, got.Key)
		}
	}
}

func TestSelect_FiltersShortTitlesAndEmpty(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(1)))

	if got := sel.Select("RUTH", nil, nil, nil); got != nil {
		t.Errorf("expected nil for no candidates, got %+v", got)
	}

	short := []types.TopicCandidate{{Link: "https://x.example/1", Title: "Too short"}}
	if got := sel.Select("RUTH", short, nil, nil); got != nil {
		t.Errorf("expected short title to be rejected, got %+v", got)
	}
}

func TestSelect_PrefersAffinityWithTopOne(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(7)))
	sel.TopK = 1

	candidates := []types.TopicCandidate{
		{Link: "https://x.example/markets", Title: "Markets close higher on earnings week", Source: "Wire"},
		{Link: "https://x.example/healing", Title: "Town reports healing after prayer vigil", Source: "Faithwire"},
		{Link: "https://x.example/weather", Title: "Storm system moves across the plains", Source: "Wire"},
	}
	for i := 0; i < 20; i++ {
		got := sel.Select("RUTH", candidates, nil, nil)
		if got == nil || got.Link != "https://x.example/healing" {
			t.Fatalf("expected the healing story, got %+v", got)
		}
	}
}

func TestSelect_LearnedBiasShiftsRanking(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(3)))
	sel.TopK = 1
	sel.Jitter = 0

	candidates := []types.TopicCandidate{
		{Link: "https://x.example/a", Title: "Council debates zoning changes downtown"},
		{Link: "https://x.example/b", Title: "Volunteers rebuild the old library roof"},
	}
	got := sel.Select("KENNY", candidates, nil, map[string]float64{"library": 0.5})
	if got == nil || got.Link != "https://x.example/b" {
		t.Errorf("expected bias to favour the library story, got %+v", got)
	}
}

func TestSelect_TopKSpreadsPicks(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(11)))
	candidates := make([]types.TopicCandidate, 0, 5)
	for i := 0; i < 5; i++ {
		candidates = append(candidates, types.TopicCandidate{
			Link:  fmt.Sprintf("https://x.example/%d", i),
			Title: fmt.Sprintf("Plain neutral headline number %d", i),
		})
	}
	picked := make(map[string]bool)
	for i := 0; i < 200; i++ {
		picked[sel.Select("KENNY", candidates, nil, nil).Key] = true
	}
	if len(picked) < 2 {
		t.Errorf("expected randomized picks among the top candidates, got %v", picked)
	}
}

func TestSelectWithFallback(t *testing.T) {
	sel := NewSelector(testProfiles(), rand.New(rand.NewSource(1)))
	items := []types.TopicCandidate{{Link: "https://x.example/1", Title: "An already used story headline"}}
	trending := []types.TopicCandidate{{Title: "Lent", Source: "Bluesky Trending"}}
	seen := Keys{"https://x.example/1": {}}

	got := sel.SelectWithFallback("RUTH", items, trending, seen, nil)
	if got == nil {
		t.Fatal("expected trending fallback")
	}
	if got.Key != "trend:lent" || !got.Trending {
		t.Errorf("unexpected fallback %+v", got)
	}

	seen.Add("trend:lent")
	if got := sel.SelectWithFallback("RUTH", items, trending, seen, nil); got != nil {
		t.Errorf("seen trending topic must not be reused, got %+v", got)
	}

	fresh := []types.TopicCandidate{{Link: "https://x.example/2", Title: "A brand new story with a long title"}}
	got = sel.SelectWithFallback("RUTH", fresh, trending, Keys{}, nil)
	if got == nil || got.Trending {
		t.Errorf("news items must win over trending, got %+v", got)
	}
}

func TestUnion(t *testing.T) {
	u := Union{Keys{"a": {}}, nil, Keys{"b": {}}}
	if !u.Contains("a") || !u.Contains("b") || u.Contains("c") {
		t.Error("union membership is wrong")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   types.TopicCandidate
		want string
	}{
		{"explicit", types.TopicCandidate{Key: "k", Link: "https://x.example"}, "k"},
		{"link", types.TopicCandidate{Link: "https://x.example/a?utm_source=rss&id=3#top"}, "https://x.example/a?id=3"},
		{"title", types.TopicCandidate{Title: "  Big   NEWS Today "}, "trend:big news today"},
		{"empty", types.TopicCandidate{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(&tt.in); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got := NormalizeURL("https://news.example/story?fbclid=abc&gclid=x&utm_medium=s")
	if got != "https://news.example/story" {
		t.Errorf("NormalizeURL = %q", got)
	}
	if got := NormalizeURL("not a url"); got != "not a url" {
		t.Errorf("expected passthrough, got %q", got)
	}
	if !strings.HasPrefix(TrendKey("Ünïcode Title"), TrendPrefix) {
		t.Error("trend key must carry the prefix")
	}
}
