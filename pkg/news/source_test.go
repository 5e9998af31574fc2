package news

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/bsky"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Faith Desk</title>
  <link>https://faith.example</link>
  <item>
    <title>  Churches open their doors   as storm shelters </title>
    <link>https://faith.example/a?utm_source=rss&amp;id=7#top</link>
    <pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://faith.example/untitled</link>
  </item>
  <item>
    <title>Monastery opens a contemplative prayer library</title>
    <link>https://faith.example/b?fbclid=xyz</link>
  </item>
  <item>
    <title>Third story that should be cut by the per-feed limit</title>
    <link>https://faith.example/c</link>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title></title>
  <entry>
    <title>Theologians debate the future of the parish</title>
    <link href="https://atom.example/parish"/>
    <updated>2026-03-01T08:00:00Z</updated>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(rssFixture))
		case "/atom":
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(atomFixture))
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeeds(t *testing.T) {
	srv := feedServer(t)
	s := NewSource(Options{FeedTimeout: 300 * time.Millisecond, Concurrency: 2})

	feeds := []Feed{
		{Name: "rss", URL: srv.URL + "/rss"},
		{Name: "broken", URL: srv.URL + "/broken"},
		{Name: "slow", URL: srv.URL + "/slow"},
		{Name: "atom", URL: srv.URL + "/atom"},
	}
	items, err := s.FetchFeeds(context.Background(), feeds, 2)
	if err != nil {
		t.Fatalf("FetchFeeds: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 2 rss items and 1 atom item, got %d: %+v", len(items), items)
	}

	first := items[0]
	if first.Title != "Churches open their doors as storm shelters" {
		t.Errorf("title not collapsed: %q", first.Title)
	}
	if first.Link != "https://faith.example/a?id=7" || first.Key != first.Link {
		t.Errorf("link/key = %q / %q", first.Link, first.Key)
	}
	if first.Source != "Faith Desk" {
		t.Errorf("source = %q", first.Source)
	}
	if first.PublishedAt == nil || first.PublishedAt.Hour() != 10 {
		t.Errorf("published = %v", first.PublishedAt)
	}
	if items[1].Link != "https://faith.example/b" {
		t.Errorf("fbclid not stripped: %q", items[1].Link)
	}

	atom := items[2]
	if atom.Source == "" || !strings.HasPrefix(atom.Source, "127.0.0.1") {
		t.Errorf("untitled feed should fall back to hostname, got %q", atom.Source)
	}
	if atom.PublishedAt == nil {
		t.Error("expected updated time as fallback")
	}
}

func TestFetchFeedsCancelled(t *testing.T) {
	srv := feedServer(t)
	s := NewSource(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FetchFeeds(ctx, []Feed{{URL: srv.URL + "/rss"}}, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSample(t *testing.T) {
	catalog := []Category{
		{Name: "a", Feeds: []Feed{{URL: "a1"}, {URL: "a2"}}},
		{Name: "b", Feeds: []Feed{{URL: "b1"}}},
		{Name: "empty"},
		{Name: "c", Feeds: []Feed{{URL: "c1"}, {URL: "c2"}, {URL: "c3"}}},
	}
	s := NewSource(Options{Catalog: catalog, Extras: 2, Rand: rand.New(rand.NewSource(7))})

	for i := 0; i < 20; i++ {
		feeds := s.Sample()
		if len(feeds) != 5 {
			t.Fatalf("expected 3 category picks + 2 extras, got %d", len(feeds))
		}
		seen := map[string]bool{}
		for _, f := range feeds {
			if seen[f.URL] {
				t.Fatalf("duplicate feed %s in sample", f.URL)
			}
			seen[f.URL] = true
		}
		if feeds[1].URL != "b1" {
			t.Errorf("second pick must come from category b, got %s", feeds[1].URL)
		}
	}

	big := NewSource(Options{Catalog: catalog, Extras: 10})
	if got := len(big.Sample()); got != 6 {
		t.Errorf("extras must be limited by remaining feeds, got %d", got)
	}
}

func TestDefaultCatalogSampling(t *testing.T) {
	s := NewSource(Options{Extras: 3})
	feeds := s.Sample()
	if want := len(DefaultCatalog()) + 3; len(feeds) != want {
		t.Errorf("sample size = %d, want %d", len(feeds), want)
	}
}

type fakeTrending struct {
	topics []bsky.TrendingTopic
	err    error
}

func (f fakeTrending) TrendingTopics(ctx context.Context, limit int) ([]bsky.TrendingTopic, error) {
	return f.topics, f.err
}

func TestFetchTrending(t *testing.T) {
	s := NewSource(Options{Trending: fakeTrending{topics: []bsky.TrendingTopic{
		{Title: "Lent"},
		{Title: strings.Repeat("very long trending sentence ", 3)},
		{Title: "  "},
		{Title: "Pope Leo", Suggested: true},
	}}})

	got, err := s.FetchTrending(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trending topics, got %+v", got)
	}
	if got[0].Key != "trend:lent" || !got[0].Trending || got[0].Link != "" || got[0].Source != "Bluesky trending" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Source != "Bluesky suggested" {
		t.Errorf("got[1].Source = %q", got[1].Source)
	}

	failing := NewSource(Options{Trending: fakeTrending{err: errors.New("503")}})
	got, err = failing.FetchTrending(context.Background(), 20)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("failure should yield an empty list, got %v, %v", got, err)
	}

	none := NewSource(Options{})
	if got, _ := none.FetchTrending(context.Background(), 20); len(got) != 0 {
		t.Errorf("no fetcher should yield nothing, got %v", got)
	}
}
