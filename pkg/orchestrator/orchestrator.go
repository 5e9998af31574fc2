// Package orchestrator runs one pass over every active persona: answer
// inbound notifications, refresh engagement numbers, then post about a
// fresh topic.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DalmoMendonca/integral-bots/pkg/journal"
	"github.com/DalmoMendonca/integral-bots/pkg/learning"
	"github.com/DalmoMendonca/integral-bots/pkg/metrics"
	"github.com/DalmoMendonca/integral-bots/pkg/state"
	"github.com/DalmoMendonca/integral-bots/pkg/topic"
	"github.com/DalmoMendonca/integral-bots/pkg/triage"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Session is an authenticated connection for one persona.
type Session interface {
	FetchNotifications(ctx context.Context, limit int) ([]types.NotificationCandidate, error)
	FetchThread(ctx context.Context, key string) (*types.ThreadContext, error)
	CreatePost(ctx context.Context, text string) (types.PostRef, error)
	CreateReply(ctx context.Context, parentKey, text string) (types.PostRef, error)
	FetchEngagementCounts(ctx context.Context, key string) (types.Engagement, error)
}

// RecentPoster is implemented by sessions that can list their own posts.
// It backs the engagement refresh when the learning store knows nothing.
type RecentPoster interface {
	RecentPosts(ctx context.Context, limit int) ([]types.PostRef, error)
}

// Platform opens sessions.
type Platform interface {
	Login(ctx context.Context, creds types.Credentials) (Session, error)
}

// LoginFunc adapts a function to Platform.
type LoginFunc func(ctx context.Context, creds types.Credentials) (Session, error)

// Login implements Platform.
func (f LoginFunc) Login(ctx context.Context, creds types.Credentials) (Session, error) {
	return f(ctx, creds)
}

// ContentGenerator writes post and reply text.
type ContentGenerator interface {
	GeneratePost(ctx context.Context, id types.PersonaID, t types.TopicCandidate, peers map[types.PersonaID]string) (string, error)
	GenerateReply(ctx context.Context, id types.PersonaID, rc types.ReplyContext, peers map[types.PersonaID]string) (string, error)
}

// CandidateSource supplies the run's topic pools.
type CandidateSource interface {
	FetchTopics(ctx context.Context, maxPerFeed int) ([]types.TopicCandidate, error)
	FetchTrending(ctx context.Context, limit int) ([]types.TopicCandidate, error)
}

// Profiles lists personas in registry order.
type Profiles interface {
	IDs() []types.PersonaID
	Profile(id types.PersonaID) (*types.PersonaProfile, bool)
}

// EventLogger records activity events.
type EventLogger interface {
	Append(ev journal.Event) error
}

// Config tunes a run.
type Config struct {
	Budget                 types.RunBudget
	ReplyFloor             int
	NotificationLookback   time.Duration
	NotificationFetchLimit int
	CallTimeout            time.Duration
	SourceTimeout          time.Duration // Bounds the whole topic prefetch
	PersistEachUnit        bool
	FeedMaxPerFeed         int
	TrendingLimit          int
	RecentPostLimit        int
	MetricsTextfile        string
	Credentials            map[types.PersonaID]types.Credentials
}

// Deps are the collaborators of a run.
type Deps struct {
	Platform  Platform
	Generator ContentGenerator
	Source    CandidateSource
	Learning  learning.Store
	Events    EventLogger
	Metrics   *metrics.Recorder
	State     *state.Store
	Profiles  Profiles
	Selector  *topic.Selector
	Logger    logrus.FieldLogger
	Now       func() time.Time
}

// Orchestrator executes runs.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  logrus.FieldLogger
	now  func() time.Time
}

// New creates an orchestrator, filling defaults.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 90 * time.Second
	}
	if cfg.NotificationFetchLimit <= 0 {
		cfg.NotificationFetchLimit = 25
	}
	if cfg.FeedMaxPerFeed <= 0 {
		cfg.FeedMaxPerFeed = 8
	}
	if cfg.RecentPostLimit <= 0 {
		cfg.RecentPostLimit = 10
	}
	if deps.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		deps.Logger = l
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Learning == nil {
		deps.Learning = learning.Nop{}
	}
	if deps.Selector == nil {
		deps.Selector = topic.NewSelector(deps.Profiles, nil)
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.WithField("component", "orchestrator"),
		now:  deps.Now,
	}
}

// Budgets splits the run budget across n active personas. The reply
// budget never drops below floor and the post budget never below one.
func Budgets(b types.RunBudget, n, floor int) (posts, replies int) {
	if n <= 0 {
		return 0, 0
	}
	return max(1, b.MaxPostsPerRun/n), max(floor, b.MaxRepliesPerRun/n)
}

// ActivePersonas returns the registry's personas that have credentials, in
// registry order.
func ActivePersonas(p Profiles, creds map[types.PersonaID]types.Credentials) []types.PersonaID {
	if p == nil {
		return nil
	}
	var ids []types.PersonaID
	for _, id := range p.IDs() {
		if _, ok := creds[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// run holds the per-run working set shared by every persona.
type run struct {
	id       string
	st       *state.RunState
	triage   *triage.Triage
	peers    map[types.PersonaID]string
	topics   []types.TopicCandidate
	trending []types.TopicCandidate
	posts    int
	replies  int
}

// Run performs one full pass. Only configuration errors are returned;
// everything else is logged and recorded in the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	started := o.now()
	active := ActivePersonas(o.deps.Profiles, o.cfg.Credentials)
	if len(active) == 0 {
		return nil, types.Wrapf(types.ErrConfiguration, "no personas configured")
	}
	if o.deps.Platform == nil || o.deps.Generator == nil || o.deps.State == nil {
		return nil, types.Wrapf(types.ErrConfiguration, "platform, generator and state store are required")
	}

	r := &run{
		id:    ulid.Make().String(),
		peers: make(map[types.PersonaID]string, len(active)),
	}
	for _, id := range active {
		r.peers[id] = o.cfg.Credentials[id].Handle
	}
	r.triage = triage.New(r.peers, o.now)
	r.posts, r.replies = Budgets(o.cfg.Budget, len(active), o.cfg.ReplyFloor)

	log := o.log.WithField("run_id", r.id)
	log.WithFields(logrus.Fields{
		"personas":     len(active),
		"post_budget":  r.posts,
		"reply_budget": r.replies,
	}).Info("Run starting")

	r.st = o.deps.State.Load()
	r.topics, r.trending = o.prefetch(ctx, log)

	report := &Report{RunID: r.id, StartedAt: started}
	for _, id := range active {
		report.Personas = append(report.Personas, o.runPersona(ctx, r, id))
	}

	if err := o.deps.State.Save(r.st); err != nil {
		log.WithError(err).Error("Failed to save state")
		report.StateErr = err.Error()
	}

	report.FinishedAt = o.now()
	o.deps.Metrics.RunFinished(started, report.FinishedAt)
	if err := o.deps.Metrics.WriteTextfile(o.cfg.MetricsTextfile); err != nil {
		log.WithError(err).Warn("Failed to write metrics textfile")
	}
	log.WithFields(logrus.Fields{
		"posts":    report.Posts(),
		"replies":  report.Replies(),
		"duration": report.FinishedAt.Sub(started).String(),
	}).Info("Done.")
	return report, nil
}

// prefetch loads the news and trending pools once per run. Both are
// best-effort; a failure leaves the pool empty.
func (o *Orchestrator) prefetch(ctx context.Context, log logrus.FieldLogger) (topics, trending []types.TopicCandidate) {
	if o.deps.Source == nil {
		return nil, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, o.cfg.SourceTimeout)
		defer cancel()
		items, err := o.deps.Source.FetchTopics(cctx, o.cfg.FeedMaxPerFeed)
		if err != nil {
			log.WithError(types.Wrap(types.ErrSourceFetch, err)).Warn("Topic fetch failed")
		}
		mu.Lock()
		topics = items
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, o.cfg.CallTimeout)
		defer cancel()
		items, err := o.deps.Source.FetchTrending(cctx, o.cfg.TrendingLimit)
		if err != nil {
			log.WithError(types.Wrap(types.ErrSourceFetch, err)).Warn("Trending fetch failed")
		}
		mu.Lock()
		trending = items
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"topics":   len(topics),
		"trending": len(trending),
	}).Info("Candidate pools loaded")
	return topics, trending
}

func (o *Orchestrator) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}

func (o *Orchestrator) persist(st *state.RunState, log logrus.FieldLogger) {
	if !o.cfg.PersistEachUnit {
		return
	}
	if err := o.deps.State.Save(st); err != nil {
		log.WithError(err).Warn("Failed to persist state")
	}
}

func (o *Orchestrator) event(r *run, id types.PersonaID, ev journal.Event, log logrus.FieldLogger) {
	if o.deps.Events == nil {
		return
	}
	ev.RunID = r.id
	ev.Persona = id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}
	if err := o.deps.Events.Append(ev); err != nil {
		log.WithError(err).Debug("Failed to journal event")
	}
}

func errorText(stage Stage, err error) string {
	return fmt.Sprintf("%s: %v", stage, err)
}
