package learning

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "learning.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeywords(t *testing.T) {
	got := Keywords("Grace, GRACE and the Spirit! This would be @ruth.bsky.social https://x.example/long-path café")
	want := []string{"grace", "spirit", "café"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}

	many := Keywords("alpha bravo charlie delta echoes foxtrot golfer hotel india juliet kilos limas")
	if len(many) != 10 {
		t.Errorf("expected at most 10 keywords, got %d", len(many))
	}
}

func TestBiasFor(t *testing.T) {
	cases := []struct {
		uses int
		eff  float64
		want float64
	}{
		{1, 5, 0},
		{2, 1.3, 0},
		{2, 2, 0.2},
		{3, 10, MaxBias},
	}
	for _, c := range cases {
		if got := BiasFor(c.uses, c.eff); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("BiasFor(%d, %v) = %v, want %v", c.uses, c.eff, got, c.want)
		}
	}
}

func TestRecordUpsertKeepsText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Record(ctx, Outcome{PersonaID: "RUTH", PostKey: "at://p1", TopicKey: "https://a", Text: "grace abounds", RecordedAt: at}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, Outcome{PersonaID: "RUTH", PostKey: "at://p1", Engagement: types.Engagement{Likes: 3, Shares: 1}}); err != nil {
		t.Fatal(err)
	}

	var text, topic string
	var likes, shares int
	err := s.db.QueryRow(`SELECT text, topic_key, likes, shares FROM outcomes WHERE post_key = ?`, "at://p1").
		Scan(&text, &topic, &likes, &shares)
	if err != nil {
		t.Fatal(err)
	}
	if text != "grace abounds" || topic != "https://a" || likes != 3 || shares != 1 {
		t.Errorf("row = %q %q %d %d", text, topic, likes, shares)
	}

	var n int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM outcomes`).Scan(&n)
	if n != 1 {
		t.Errorf("expected a single row after upsert, got %d", n)
	}

	if err := s.Record(ctx, Outcome{PersonaID: "RUTH"}); err == nil {
		t.Error("empty post key should be rejected")
	}
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	posts := []struct {
		key, text string
		total     int
	}{
		{"p1", "grace abounds everywhere", 10},
		{"p2", "grace matters today", 10},
		{"p3", "weather report tomorrow", 0},
		{"p4", "sports scores tonight", 0},
	}
	for _, p := range posts {
		if err := s.Record(ctx, Outcome{PersonaID: "RUTH", PostKey: p.key, Text: p.text}); err != nil {
			t.Fatal(err)
		}
		if err := s.Record(ctx, Outcome{PersonaID: "RUTH", PostKey: p.key, Engagement: types.Engagement{Likes: p.total}}); err != nil {
			t.Fatal(err)
		}
	}
	// Replies and other personas do not count.
	_ = s.Record(ctx, Outcome{PersonaID: "RUTH", Kind: KindReply, PostKey: "r1", Text: "weather weather", Engagement: types.Engagement{Likes: 100}})
	_ = s.Record(ctx, Outcome{PersonaID: "BRYCE", PostKey: "b1", Text: "grace grace", Engagement: types.Engagement{Likes: 100}})

	biases, err := s.Recommend(ctx, "RUTH")
	if err != nil {
		t.Fatal(err)
	}
	if len(biases) != 1 || math.Abs(biases["grace"]-0.2) > 1e-9 {
		t.Errorf("biases = %v, want grace=0.2", biases)
	}

	empty, err := s.Recommend(ctx, "KENNY")
	if err != nil || len(empty) != 0 {
		t.Errorf("no history should give no biases, got %v, %v", empty, err)
	}
}

func TestRecentPostKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"a", "b", "c"} {
		_ = s.Record(ctx, Outcome{PersonaID: "JERRY", PostKey: key, RecordedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	_ = s.Record(ctx, Outcome{PersonaID: "JERRY", Kind: KindReply, PostKey: "reply", RecordedAt: base.Add(5 * time.Hour)})

	keys, err := s.RecentPostKeys(ctx, "JERRY", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"c", "b"}) {
		t.Errorf("keys = %v", keys)
	}
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	ctx := context.Background()
	if err := s.Record(ctx, Outcome{}); err != nil {
		t.Error(err)
	}
	if b, err := s.Recommend(ctx, "RUTH"); err != nil || b == nil || len(b) != 0 {
		t.Errorf("Recommend = %v, %v", b, err)
	}
	if keys, err := s.RecentPostKeys(ctx, "RUTH", 5); err != nil || len(keys) != 0 {
		t.Errorf("RecentPostKeys = %v, %v", keys, err)
	}
}
