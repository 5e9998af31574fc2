package triage

import (
	"testing"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

type keySet map[string]bool

func (k keySet) Contains(key string) bool { return k[key] }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTriage() *Triage {
	return New(map[types.PersonaID]string{
		"RUTH":  "ruth.bsky.social",
		"BRYCE": "@Bryce.bsky.social",
	}, func() time.Time { return now })
}

func keys(notes []types.NotificationCandidate) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Key
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectUnanswered_PersonaBeforeAudience(t *testing.T) {
	tr := newTestTriage()
	notes := []types.NotificationCandidate{
		{Key: "n1", AuthorHandle: "someone.bsky.social", IndexedAt: now.Add(-2 * time.Hour)},
		{Key: "n2", AuthorHandle: "bryce.bsky.social", IndexedAt: now.Add(-1 * time.Hour)},
	}

	got := tr.SelectUnanswered("RUTH", notes, keySet{}, 24*time.Hour)
	if want := []string{"n2", "n1"}; !equal(keys(got), want) {
		t.Fatalf("order = %v, want %v", keys(got), want)
	}
	if got[0].Priority != types.PriorityPersona || !got[0].IsFromKnownPersona {
		t.Errorf("n2 should be a persona notification: %+v", got[0])
	}
	if got[1].Priority != types.PriorityAudience || got[1].IsFromKnownPersona {
		t.Errorf("n1 should be an audience notification: %+v", got[1])
	}
}

func TestSelectUnanswered_PriorityThenRecency(t *testing.T) {
	tr := newTestTriage()
	notes := []types.NotificationCandidate{
		{Key: "h-old", AuthorHandle: "a.example", IndexedAt: now.Add(-5 * time.Hour)},
		{Key: "p-old", AuthorHandle: "ruth.bsky.social", IndexedAt: now.Add(-6 * time.Hour)},
		{Key: "h-new", AuthorHandle: "b.example", IndexedAt: now.Add(-1 * time.Hour)},
		{Key: "p-new", AuthorHandle: "RUTH.bsky.social", IndexedAt: now.Add(-3 * time.Hour)},
	}

	got := tr.SelectUnanswered("BRYCE", notes, nil, 24*time.Hour)
	want := []string{"p-new", "p-old", "h-new", "h-old"}
	if !equal(keys(got), want) {
		t.Errorf("order = %v, want %v", keys(got), want)
	}
}

func TestSelectUnanswered_StableTies(t *testing.T) {
	tr := newTestTriage()
	at := now.Add(-time.Hour)
	notes := []types.NotificationCandidate{
		{Key: "a", AuthorHandle: "x.example", IndexedAt: at},
		{Key: "b", AuthorHandle: "y.example", IndexedAt: at},
		{Key: "c", AuthorHandle: "z.example", IndexedAt: at},
	}
	got := tr.SelectUnanswered("RUTH", notes, nil, 24*time.Hour)
	if want := []string{"a", "b", "c"}; !equal(keys(got), want) {
		t.Errorf("ties must keep fetch order, got %v", keys(got))
	}
}

func TestSelectUnanswered_ExcludesAnswered(t *testing.T) {
	tr := newTestTriage()
	notes := []types.NotificationCandidate{
		{Key: "n1", AuthorHandle: "x.example", IndexedAt: now.Add(-time.Hour)},
		{Key: "n2", AuthorHandle: "x.example", IndexedAt: now.Add(-time.Hour)},
	}
	got := tr.SelectUnanswered("RUTH", notes, keySet{"n1": true}, 24*time.Hour)
	if want := []string{"n2"}; !equal(keys(got), want) {
		t.Errorf("got %v, want %v", keys(got), want)
	}
}

func TestSelectUnanswered_Filters(t *testing.T) {
	tr := newTestTriage()
	notes := []types.NotificationCandidate{
		{Key: "old", AuthorHandle: "x.example", IndexedAt: now.Add(-25 * time.Hour)},
		{Key: "", AuthorHandle: "x.example", IndexedAt: now},
		{Key: "self", AuthorHandle: "@ruth.bsky.social", IndexedAt: now},
		{Key: "dup", AuthorHandle: "x.example", IndexedAt: now.Add(-2 * time.Hour)},
		{Key: "dup", AuthorHandle: "x.example", IndexedAt: now.Add(-2 * time.Hour)},
	}
	got := tr.SelectUnanswered("RUTH", notes, nil, 24*time.Hour)
	if want := []string{"dup"}; !equal(keys(got), want) {
		t.Errorf("got %v, want %v", keys(got), want)
	}

	all := tr.SelectUnanswered("BRYCE", notes, nil, 0)
	if want := []string{"self", "dup", "old"}; !equal(keys(all), want) {
		t.Errorf("without lookback got %v, want %v", keys(all), want)
	}
}

func TestPersonaFor(t *testing.T) {
	tr := newTestTriage()
	if id, ok := tr.PersonaFor("@BRYCE.bsky.social"); !ok || id != "BRYCE" {
		t.Errorf("PersonaFor = %q, %v", id, ok)
	}
	if _, ok := tr.PersonaFor("stranger.example"); ok {
		t.Error("unknown handle matched")
	}
}
