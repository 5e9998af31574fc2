package bsky

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Session is an authenticated account on the PDS.
type Session struct {
	client    *Client
	accessJwt string

	mu      sync.Mutex
	threads map[string]types.ThreadContext // by post uri

	DID    string
	Handle string
}

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

type author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type postRecord struct {
	Type      string    `json:"$type,omitempty"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Langs     []string  `json:"langs,omitempty"`
	Facets    []Facet   `json:"facets,omitempty"`
	Reply     *replyRef `json:"reply,omitempty"`
}

type postView struct {
	URI         string     `json:"uri"`
	CID         string     `json:"cid"`
	Author      author     `json:"author"`
	Record      postRecord `json:"record"`
	IndexedAt   string     `json:"indexedAt"`
	LikeCount   int        `json:"likeCount"`
	RepostCount int        `json:"repostCount"`
	ReplyCount  int        `json:"replyCount"`
	QuoteCount  int        `json:"quoteCount"`
}

// FetchNotifications lists recent mention and reply notifications.
func (s *Session) FetchNotifications(ctx context.Context, limit int) ([]types.NotificationCandidate, error) {
	if limit <= 0 {
		limit = 25
	}
	var out struct {
		Notifications []struct {
			URI       string     `json:"uri"`
			CID       string     `json:"cid"`
			Author    author     `json:"author"`
			Reason    string     `json:"reason"`
			Record    postRecord `json:"record"`
			IndexedAt string     `json:"indexedAt"`
		} `json:"notifications"`
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := s.client.query(ctx, s.client.service, s.accessJwt, "app.bsky.notification.listNotifications", params, &out); err != nil {
		return nil, err
	}

	notes := make([]types.NotificationCandidate, 0, len(out.Notifications))
	for _, n := range out.Notifications {
		if n.Reason != "mention" && n.Reason != "reply" {
			continue
		}
		notes = append(notes, types.NotificationCandidate{
			Key:          n.URI,
			CID:          n.CID,
			Reason:       n.Reason,
			AuthorHandle: n.Author.Handle,
			IndexedAt:    parseTime(n.IndexedAt),
			ContentText:  n.Record.Text,
		})
	}
	return notes, nil
}

// FetchThread returns the reply coordinates for the post at uri. The root is
// the post's own thread root when it is itself a reply. Results are cached for
// the life of the session.
func (s *Session) FetchThread(ctx context.Context, uri string) (*types.ThreadContext, error) {
	s.mu.Lock()
	cached, ok := s.threads[uri]
	s.mu.Unlock()
	if ok {
		return &cached, nil
	}

	var out struct {
		Thread struct {
			Type string    `json:"$type"`
			Post *postView `json:"post"`
		} `json:"thread"`
	}
	params := url.Values{"uri": {uri}, "depth": {"0"}}
	if err := s.client.query(ctx, s.client.service, s.accessJwt, "app.bsky.feed.getPostThread", params, &out); err != nil {
		return nil, err
	}
	post := out.Thread.Post
	if post == nil || post.URI == "" || post.CID == "" {
		return nil, fmt.Errorf("getPostThread %s: post unavailable (%s)", uri, out.Thread.Type)
	}

	tc := &types.ThreadContext{
		RootKey:      post.URI,
		RootCID:      post.CID,
		ParentKey:    post.URI,
		ParentCID:    post.CID,
		AuthorHandle: post.Author.Handle,
		Text:         post.Record.Text,
	}
	if r := post.Record.Reply; r != nil && r.Root.URI != "" && r.Root.CID != "" {
		tc.RootKey = r.Root.URI
		tc.RootCID = r.Root.CID
	}

	s.mu.Lock()
	if s.threads == nil {
		s.threads = make(map[string]types.ThreadContext)
	}
	s.threads[uri] = *tc
	s.mu.Unlock()
	return tc, nil
}

// CreatePost publishes a top-level post.
func (s *Session) CreatePost(ctx context.Context, text string) (types.PostRef, error) {
	return s.createPost(ctx, text, nil)
}

// CreateReply publishes text as a reply to the post at parentKey.
func (s *Session) CreateReply(ctx context.Context, parentKey, text string) (types.PostRef, error) {
	tc, err := s.FetchThread(ctx, parentKey)
	if err != nil {
		return types.PostRef{}, types.Wrap(types.ErrSubmission, fmt.Errorf("resolve reply parent: %w", err))
	}
	return s.createPost(ctx, text, &replyRef{
		Root:   strongRef{URI: tc.RootKey, CID: tc.RootCID},
		Parent: strongRef{URI: tc.ParentKey, CID: tc.ParentCID},
	})
}

func (s *Session) createPost(ctx context.Context, text string, reply *replyRef) (types.PostRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.PostRef{}, types.Wrapf(types.ErrSubmission, "empty post text")
	}

	record := postRecord{
		Type:      "app.bsky.feed.post",
		Text:      text,
		CreatedAt: s.client.now().UTC().Format(time.RFC3339Nano),
		Langs:     []string{"en"},
		Facets:    DetectFacets(ctx, text, s.client.ResolveHandle),
		Reply:     reply,
	}
	in := map[string]any{
		"repo":       s.DID,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}
	var out strongRef
	if err := s.client.procedure(ctx, s.client.service, s.accessJwt, "com.atproto.repo.createRecord", in, &out); err != nil {
		return types.PostRef{}, types.Wrap(types.ErrSubmission, err)
	}
	if out.URI == "" {
		return types.PostRef{}, types.Wrapf(types.ErrSubmission, "createRecord: empty uri")
	}

	s.client.logger.WithFields(logrus.Fields{
		"handle": s.Handle,
		"uri":    out.URI,
		"reply":  reply != nil,
	}).Debug("Record created")
	return types.PostRef{Key: out.URI, CID: out.CID}, nil
}

// FetchEngagementCounts returns like, share and reply counts for uri.
// Shares count both reposts and quotes.
func (s *Session) FetchEngagementCounts(ctx context.Context, uri string) (types.Engagement, error) {
	var out struct {
		Posts []postView `json:"posts"`
	}
	params := url.Values{"uris": {uri}}
	if err := s.client.query(ctx, s.client.service, s.accessJwt, "app.bsky.feed.getPosts", params, &out); err != nil {
		return types.Engagement{}, err
	}
	if len(out.Posts) == 0 {
		return types.Engagement{}, fmt.Errorf("getPosts %s: not found", uri)
	}
	p := out.Posts[0]
	return types.Engagement{
		Likes:   p.LikeCount,
		Shares:  p.RepostCount + p.QuoteCount,
		Replies: p.ReplyCount,
	}, nil
}

// RecentPosts lists the account's own recent top-level posts, newest first.
// Reposts of other accounts are skipped.
func (s *Session) RecentPosts(ctx context.Context, limit int) ([]types.PostRef, error) {
	if limit <= 0 {
		limit = 10
	}
	var out struct {
		Feed []struct {
			Post   postView       `json:"post"`
			Reason map[string]any `json:"reason,omitempty"`
		} `json:"feed"`
	}
	params := url.Values{
		"actor":  {s.DID},
		"limit":  {strconv.Itoa(limit)},
		"filter": {"posts_no_replies"},
	}
	if err := s.client.query(ctx, s.client.service, s.accessJwt, "app.bsky.feed.getAuthorFeed", params, &out); err != nil {
		return nil, err
	}
	refs := make([]types.PostRef, 0, len(out.Feed))
	for _, item := range out.Feed {
		if item.Reason != nil || item.Post.Author.DID != s.DID {
			continue
		}
		refs = append(refs, types.PostRef{Key: item.Post.URI, CID: item.Post.CID})
	}
	return refs, nil
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
