package orchestrator

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/journal"
	"github.com/DalmoMendonca/integral-bots/pkg/learning"
	"github.com/DalmoMendonca/integral-bots/pkg/metrics"
	"github.com/DalmoMendonca/integral-bots/pkg/state"
	"github.com/DalmoMendonca/integral-bots/pkg/topic"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Stage is a step of the per-persona state machine.
type Stage string

const (
	StageLogin         Stage = "LOGIN"
	StageReplyPhase    Stage = "REPLY_PHASE"
	StageMetricRefresh Stage = "METRIC_REFRESH"
	StagePostPhase     Stage = "POST_PHASE"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// Journal and metric action names.
const (
	ActionLogin   = "login"
	ActionReply   = "reply"
	ActionPost    = "post"
	ActionRefresh = "refresh"
)

// runPersona drives one persona from LOGIN to DONE or FAILED. Only a
// login failure ends in FAILED; every later failure is local to its
// phase.
func (o *Orchestrator) runPersona(ctx context.Context, r *run, id types.PersonaID) PersonaReport {
	rep := PersonaReport{ID: id, Stage: StageLogin}
	log := o.log.WithFields(logrus.Fields{"run_id": r.id, "persona": string(id)})

	cctx, cancel := o.call(ctx)
	sess, err := o.deps.Platform.Login(cctx, o.cfg.Credentials[id])
	cancel()
	if err == nil && sess == nil {
		err = types.Wrapf(types.ErrAuthentication, "no session returned")
	}
	if err != nil {
		if !errors.Is(err, types.ErrAuthentication) {
			err = types.Wrap(types.ErrAuthentication, err)
		}
		log.WithField("stage", StageLogin).WithError(err).Warn("Login failed, skipping persona")
		rep.fail(StageLogin, err)
		rep.Stage = StageFailed
		o.deps.State.UpdateCounters(r.st, id, func(c *state.Counters) { c.LoginFailures++ })
		o.deps.Metrics.Action(id, ActionLogin, metrics.ResultFailed)
		o.event(r, id, journal.Event{Action: ActionLogin, Result: metrics.ResultFailed, Error: err.Error()}, log)
		return rep
	}
	o.deps.Metrics.Action(id, ActionLogin, metrics.ResultOK)

	rep.Stage = StageReplyPhase
	o.replyPhase(ctx, r, id, sess, &rep, log.WithField("stage", StageReplyPhase))

	rep.Stage = StageMetricRefresh
	o.refreshMetrics(ctx, r, id, sess, &rep, log.WithField("stage", StageMetricRefresh))

	rep.Stage = StagePostPhase
	o.postPhase(ctx, r, id, sess, &rep, log.WithField("stage", StagePostPhase))

	rep.Stage = StageDone
	log.WithFields(logrus.Fields{
		"stage":   StageDone,
		"replies": rep.Replies,
		"posts":   rep.Posts,
	}).Info("Persona finished")
	return rep
}

func (o *Orchestrator) replyPhase(ctx context.Context, r *run, id types.PersonaID, sess Session, rep *PersonaReport, log logrus.FieldLogger) {
	cctx, cancel := o.call(ctx)
	notes, err := sess.FetchNotifications(cctx, o.cfg.NotificationFetchLimit)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Failed to fetch notifications")
		rep.fail(StageReplyPhase, err)
		return
	}

	candidates := r.triage.SelectUnanswered(id, notes, o.deps.State.AnsweredNotifications(r.st, id), o.cfg.NotificationLookback)
	log.WithFields(logrus.Fields{
		"fetched":    len(notes),
		"candidates": len(candidates),
		"budget":     r.replies,
	}).Info("Reply loop starting")

	for _, n := range candidates {
		if rep.Replies >= r.replies || ctx.Err() != nil {
			break
		}
		nlog := log.WithField("key", n.Key)

		rc := types.ReplyContext{
			Text:               n.ContentText,
			IsFromKnownPersona: n.IsFromKnownPersona,
			Priority:           n.Priority,
			AuthorHandle:       n.AuthorHandle,
		}
		o.enrichReply(ctx, sess, n.Key, &rc, nlog)

		cctx, cancel := o.call(ctx)
		text, err := o.deps.Generator.GenerateReply(cctx, id, rc, r.peers)
		cancel()
		if err != nil {
			o.replyFailed(r, id, n.Key, types.Wrap(types.ErrGeneration, err), rep, nlog)
			continue
		}

		cctx, cancel = o.call(ctx)
		ref, err := sess.CreateReply(cctx, n.Key, text)
		cancel()
		if err != nil {
			o.replyFailed(r, id, n.Key, types.Wrap(types.ErrSubmission, err), rep, nlog)
			continue
		}

		// Mark right after submission, before any bookkeeping.
		o.deps.State.MarkNotificationAnswered(r.st, id, n.Key)
		o.persist(r.st, nlog)

		now := o.now()
		o.deps.State.UpdateCounters(r.st, id, func(c *state.Counters) {
			c.Replies++
			c.LastReplyAt = &now
		})
		rep.Replies++

		o.record(ctx, learning.Outcome{
			PersonaID:  id,
			Kind:       learning.KindReply,
			PostKey:    ref.Key,
			TopicKey:   n.Key,
			Text:       text,
			RecordedAt: now,
		}, nlog)
		o.deps.Metrics.Action(id, ActionReply, metrics.ResultOK)
		o.event(r, id, journal.Event{Action: ActionReply, Result: metrics.ResultOK, Key: ref.Key, TopicKey: n.Key, Text: text}, nlog)
		nlog.WithField("reply", ref.Key).Info("Replied")
	}
}

// enrichReply fills gaps in the reply context from the thread. Failure
// leaves the notification's own text in place.
func (o *Orchestrator) enrichReply(ctx context.Context, sess Session, key string, rc *types.ReplyContext, log logrus.FieldLogger) {
	cctx, cancel := o.call(ctx)
	tc, err := sess.FetchThread(cctx, key)
	cancel()
	if err != nil || tc == nil {
		if err != nil {
			log.WithError(err).Debug("Thread fetch failed, using notification text")
		}
		return
	}
	if tc.Text != "" {
		rc.Text = tc.Text
	}
	if rc.AuthorHandle == "" {
		rc.AuthorHandle = tc.AuthorHandle
	}
}

func (o *Orchestrator) replyFailed(r *run, id types.PersonaID, key string, err error, rep *PersonaReport, log logrus.FieldLogger) {
	log.WithError(err).Warn("Reply failed")
	rep.fail(StageReplyPhase, err)
	o.deps.State.UpdateCounters(r.st, id, func(c *state.Counters) { c.ReplyFailures++ })
	o.deps.Metrics.Action(id, ActionReply, metrics.ResultFailed)
	o.event(r, id, journal.Event{Action: ActionReply, Result: metrics.ResultFailed, TopicKey: key, Error: err.Error()}, log)
}

// refreshMetrics pulls current engagement for the persona's recent posts.
// Nothing here can stop the post phase.
func (o *Orchestrator) refreshMetrics(ctx context.Context, r *run, id types.PersonaID, sess Session, rep *PersonaReport, log logrus.FieldLogger) {
	cctx, cancel := o.call(ctx)
	keys, err := o.deps.Learning.RecentPostKeys(cctx, id, o.cfg.RecentPostLimit)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Failed to list recent posts")
	}
	if len(keys) == 0 {
		if rp, ok := sess.(RecentPoster); ok {
			cctx, cancel := o.call(ctx)
			refs, err := rp.RecentPosts(cctx, o.cfg.RecentPostLimit)
			cancel()
			if err != nil {
				log.WithError(err).Debug("Failed to list author feed")
			}
			for _, ref := range refs {
				keys = append(keys, ref.Key)
			}
		}
	}
	if len(keys) == 0 {
		return
	}

	total, refreshed := 0, 0
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := o.call(ctx)
		eng, err := sess.FetchEngagementCounts(cctx, key)
		cancel()
		if err != nil {
			log.WithField("key", key).WithError(err).Debug("Engagement fetch failed")
			continue
		}
		total += eng.Total()
		refreshed++
		o.record(ctx, learning.Outcome{
			PersonaID:  id,
			Kind:       learning.KindPost,
			PostKey:    key,
			Engagement: eng,
			RecordedAt: o.now(),
		}, log)
	}
	if refreshed < len(keys) {
		rep.Errors = append(rep.Errors, errorText(StageMetricRefresh, errPartialRefresh))
	}
	o.deps.Metrics.SetEngagement(id, total)
	o.deps.Metrics.Action(id, ActionRefresh, metrics.ResultOK)
	log.WithFields(logrus.Fields{
		"posts":      refreshed,
		"engagement": total,
	}).Info("Engagement refreshed")
}

var errPartialRefresh = errors.New("some engagement counts could not be fetched")

func (o *Orchestrator) postPhase(ctx context.Context, r *run, id types.PersonaID, sess Session, rep *PersonaReport, log logrus.FieldLogger) {
	cctx, cancel := o.call(ctx)
	biases, err := o.deps.Learning.Recommend(cctx, id)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Failed to load topic biases")
		biases = nil
	}

	attempted := topic.Keys{}
	seen := topic.Union{o.deps.State.SeenTopics(r.st, id), attempted}

	for attempt := 0; attempt < r.posts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		t := o.deps.Selector.SelectWithFallback(id, r.topics, r.trending, seen, biases)
		if t == nil {
			log.Info("No fresh topic available")
			o.deps.Metrics.Action(id, ActionPost, metrics.ResultSkipped)
			break
		}
		attempted.Add(t.Key)
		tlog := log.WithFields(logrus.Fields{"key": t.Key, "attempt": attempt + 1})

		cctx, cancel := o.call(ctx)
		text, err := o.deps.Generator.GeneratePost(cctx, id, *t, r.peers)
		cancel()
		if err != nil {
			o.postFailed(r, id, t.Key, types.Wrap(types.ErrGeneration, err), rep, tlog)
			continue
		}

		cctx, cancel = o.call(ctx)
		ref, err := sess.CreatePost(cctx, text)
		cancel()
		if err != nil {
			o.postFailed(r, id, t.Key, types.Wrap(types.ErrSubmission, err), rep, tlog)
			continue
		}

		o.deps.State.MarkTopicSeen(r.st, id, t.Key)
		o.persist(r.st, tlog)

		now := o.now()
		o.deps.State.UpdateCounters(r.st, id, func(c *state.Counters) {
			c.Posts++
			c.LastPostAt = &now
		})
		rep.Posts++

		o.record(ctx, learning.Outcome{
			PersonaID:  id,
			Kind:       learning.KindPost,
			PostKey:    ref.Key,
			TopicKey:   t.Key,
			Text:       text,
			RecordedAt: now,
		}, tlog)
		o.deps.Metrics.Action(id, ActionPost, metrics.ResultOK)
		o.event(r, id, journal.Event{Action: ActionPost, Result: metrics.ResultOK, Key: ref.Key, TopicKey: t.Key, Text: text}, tlog)
		tlog.WithField("post", ref.Key).Info("Posted")
		break
	}
}

func (o *Orchestrator) postFailed(r *run, id types.PersonaID, key string, err error, rep *PersonaReport, log logrus.FieldLogger) {
	log.WithError(err).Warn("Post attempt failed")
	rep.fail(StagePostPhase, err)
	o.deps.State.UpdateCounters(r.st, id, func(c *state.Counters) { c.PostFailures++ })
	o.deps.Metrics.Action(id, ActionPost, metrics.ResultFailed)
	o.event(r, id, journal.Event{Action: ActionPost, Result: metrics.ResultFailed, TopicKey: key, Error: err.Error()}, log)
}

func (o *Orchestrator) record(ctx context.Context, out learning.Outcome, log logrus.FieldLogger) {
	cctx, cancel := o.call(ctx)
	defer cancel()
	if err := o.deps.Learning.Record(cctx, out); err != nil {
		log.WithError(err).Debug("Failed to record outcome")
	}
}
