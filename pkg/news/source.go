// Package news gathers topic candidates from RSS/Atom feeds and Bluesky
// trending topics.
package news

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DalmoMendonca/integral-bots/pkg/bsky"
	"github.com/DalmoMendonca/integral-bots/pkg/topic"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// MaxTrendingTitle excludes long trending entries, which are usually
// sentences rather than topics.
const MaxTrendingTitle = 60

// TrendingFetcher lists trending topics.
type TrendingFetcher interface {
	TrendingTopics(ctx context.Context, limit int) ([]bsky.TrendingTopic, error)
}

// Options configures a Source.
type Options struct {
	Catalog     []Category // nil uses DefaultCatalog
	Extras      int        // Random feeds added beyond one per category
	Concurrency int        // Parallel feed fetches
	FeedTimeout time.Duration
	HTTPClient  *http.Client
	Trending    TrendingFetcher // nil disables trending
	Logger      logrus.FieldLogger
	Rand        *rand.Rand
}

// Source fetches topic candidates.
type Source struct {
	catalog     []Category
	extras      int
	concurrency int
	feedTimeout time.Duration
	client      *http.Client
	trending    TrendingFetcher
	logger      logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a candidate source.
func NewSource(opts Options) *Source {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Extras < 0 {
		opts.Extras = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 6
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{
		catalog:     opts.Catalog,
		extras:      opts.Extras,
		concurrency: opts.Concurrency,
		feedTimeout: opts.FeedTimeout,
		client:      opts.HTTPClient,
		trending:    opts.Trending,
		logger:      opts.Logger.WithField("component", "news"),
		rng:         opts.Rand,
	}
}

// Sample picks one random feed per category, then up to Extras more from
// the feeds not yet picked.
func (s *Source) Sample() []Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	picked := make(map[string]bool)
	var out []Feed
	for _, cat := range s.catalog {
		if len(cat.Feeds) == 0 {
			continue
		}
		f := cat.Feeds[s.rng.Intn(len(cat.Feeds))]
		if picked[f.URL] {
			continue
		}
		picked[f.URL] = true
		out = append(out, f)
	}

	var remaining []Feed
	for _, cat := range s.catalog {
		for _, f := range cat.Feeds {
			if !picked[f.URL] {
				picked[f.URL] = true
				remaining = append(remaining, f)
			}
		}
	}
	for i := 0; i < s.extras && len(remaining) > 0; i++ {
		j := s.rng.Intn(len(remaining))
		out = append(out, remaining[j])
		remaining = append(remaining[:j], remaining[j+1:]...)
	}
	return out
}

// FetchTopics samples the catalog and fetches up to maxPerFeed items from
// each sampled feed. Failing feeds are logged and skipped; the error is
// non-nil only when ctx is done.
func (s *Source) FetchTopics(ctx context.Context, maxPerFeed int) ([]types.TopicCandidate, error) {
	return s.FetchFeeds(ctx, s.Sample(), maxPerFeed)
}

// FetchFeeds fetches the given feeds in parallel. Items are grouped by feed
// in the order feeds were given.
func (s *Source) FetchFeeds(ctx context.Context, feeds []Feed, maxPerFeed int) ([]types.TopicCandidate, error) {
	if maxPerFeed <= 0 {
		maxPerFeed = 8
	}
	results := make([][]types.TopicCandidate, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range feeds {
		g.Go(func() error {
			items, err := s.fetchFeed(gctx, f, maxPerFeed)
			if err != nil {
				s.logger.WithError(types.Wrap(types.ErrSourceFetch, err)).
					WithField("feed", f.URL).Warn("Feed fetch failed")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []types.TopicCandidate
	for _, items := range results {
		out = append(out, items...)
	}
	s.logger.WithFields(logrus.Fields{"feeds": len(feeds), "items": len(out)}).Info("Fetched feed topics")
	return out, nil
}

func (s *Source) fetchFeed(ctx context.Context, f Feed, maxPerFeed int) ([]types.TopicCandidate, error) {
	policy := timeout.NewBuilder[*gofeed.Feed](s.feedTimeout).Build()
	parsed, err := failsafe.With[*gofeed.Feed](policy).WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[*gofeed.Feed]) (*gofeed.Feed, error) {
			fp := gofeed.NewParser()
			fp.Client = s.client
			fp.UserAgent = "integral-bots/1.0"
			return fp.ParseURLWithContext(f.URL, exec.Context())
		})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}

	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		source = hostname(f.URL)
	}

	var out []types.TopicCandidate
	for _, item := range parsed.Items {
		if len(out) >= maxPerFeed {
			break
		}
		if item == nil {
			continue
		}
		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" {
			continue
		}
		c := types.TopicCandidate{
			Title:  title,
			Source: source,
			Link:   topic.NormalizeURL(strings.TrimSpace(item.Link)),
		}
		switch {
		case item.PublishedParsed != nil:
			t := item.PublishedParsed.UTC()
			c.PublishedAt = &t
		case item.UpdatedParsed != nil:
			t := item.UpdatedParsed.UTC()
			c.PublishedAt = &t
		}
		c.Key = topic.Key(&c)
		out = append(out, c)
	}
	return out, nil
}

// FetchTrending returns trending topics as link-less candidates. Failures
// yield an empty list.
func (s *Source) FetchTrending(ctx context.Context, limit int) ([]types.TopicCandidate, error) {
	if s.trending == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	topics, err := s.trending.TrendingTopics(ctx, limit)
	if err != nil {
		s.logger.WithError(types.Wrap(types.ErrSourceFetch, err)).Warn("Trending fetch failed")
		return []types.TopicCandidate{}, nil
	}

	out := make([]types.TopicCandidate, 0, len(topics))
	for _, t := range topics {
		title := strings.TrimSpace(t.Title)
		if title == "" || len([]rune(title)) >= MaxTrendingTitle {
			continue
		}
		source := "Bluesky trending"
		if t.Suggested {
			source = "Bluesky suggested"
		}
		out = append(out, types.TopicCandidate{
			Key:      topic.TrendKey(title),
			Title:    title,
			Source:   source,
			Trending: true,
		})
	}
	return out, nil
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}
