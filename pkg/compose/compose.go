// Package compose generates persona post and reply text.
//
// A language-model provider is used when configured. Over-length output is
// regenerated at most once, then clamped. Any provider failure falls back to
// the persona's canned templates, so a known persona always gets text.
package compose

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/llm"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Profiles resolves persona profiles and their canonical order.
type Profiles interface {
	Profile(id types.PersonaID) (*types.PersonaProfile, bool)
	IDs() []types.PersonaID
}

// Composer implements the content generator used by the orchestrator.
type Composer struct {
	profiles Profiles
	provider llm.Provider
	logger   logrus.FieldLogger
	retry    retrypolicy.RetryPolicy[string]

	mu  sync.Mutex
	rng *rand.Rand

	MaxChars    int     // Hard length limit for generated text
	MentionRate float64 // Probability of tagging a peer persona in a post
}

// Options configures a Composer.
type Options struct {
	Provider llm.Provider // nil selects template-only generation
	Logger   logrus.FieldLogger
	Rand     *rand.Rand
}

// New creates a composer over the given profiles.
func New(profiles Profiles, opts Options) *Composer {
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c := &Composer{
		profiles:    profiles,
		provider:    opts.Provider,
		logger:      opts.Logger.WithField("component", "compose"),
		rng:         opts.Rand,
		MaxChars:    DefaultMaxChars,
		MentionRate: 0.18,
	}
	c.retry = retrypolicy.NewBuilder[string]().
		HandleIf(func(text string, err error) bool {
			return err == nil && Length(text) > c.MaxChars
		}).
		WithMaxRetries(1).
		Build()
	return c
}

// GeneratePost writes a post about topic in the persona's voice.
func (c *Composer) GeneratePost(ctx context.Context, id types.PersonaID, topic types.TopicCandidate, peers map[types.PersonaID]string) (string, error) {
	p, ok := c.profiles.Profile(id)
	if !ok {
		return "", types.Wrapf(types.ErrGeneration, "unknown persona %s", id)
	}

	link := linkOf(topic.Link)
	mention := c.maybeMention(p, peers)

	if c.provider != nil {
		text, err := c.generate(ctx, postSystemPrompt(p, c.MaxChars), postUserPrompt(topic, link, mention))
		if err == nil {
			return ClampPreserveURL(ensureLink(text, link), c.MaxChars), nil
		}
		c.logger.WithFields(logrus.Fields{"persona": id, "provider": c.provider.Name()}).
			WithError(err).Warn("Post generation failed, using template")
	}

	text := c.templatePost(p, topic, link, mention)
	if strings.TrimSpace(text) == "" {
		return "", types.Wrapf(types.ErrGeneration, "empty post for %s", id)
	}
	return text, nil
}

// GenerateReply writes a reply to an inbound notification.
func (c *Composer) GenerateReply(ctx context.Context, id types.PersonaID, rc types.ReplyContext, peers map[types.PersonaID]string) (string, error) {
	p, ok := c.profiles.Profile(id)
	if !ok {
		return "", types.Wrapf(types.ErrGeneration, "unknown persona %s", id)
	}

	if c.provider != nil {
		peer := c.peerByHandle(rc.AuthorHandle, peers)
		text, err := c.generate(ctx, replySystemPrompt(p, c.MaxChars), replyUserPrompt(rc, peer))
		if err == nil {
			return ClampText(text, c.MaxChars), nil
		}
		c.logger.WithFields(logrus.Fields{"persona": id, "provider": c.provider.Name()}).
			WithError(err).Warn("Reply generation failed, using template")
	}

	text := c.templateReply(p)
	if strings.TrimSpace(text) == "" {
		return "", types.Wrapf(types.ErrGeneration, "empty reply for %s", id)
	}
	return text, nil
}

// generate calls the provider, regenerating once if the output is too long.
// The last successful output is returned even if it is still too long or
// the regeneration failed.
func (c *Composer) generate(ctx context.Context, system, prompt string) (string, error) {
	var last string
	var lastErr error
	_, err := failsafe.With[string](c.retry).WithContext(ctx).Get(func() (string, error) {
		text, err := c.provider.Generate(ctx, system, prompt)
		text = strings.TrimSpace(text)
		if err == nil && text == "" {
			err = fmt.Errorf("empty completion")
		}
		if err != nil {
			lastErr = err
			return text, err
		}
		last = text
		return text, nil
	})
	if last != "" {
		return last, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return "", types.Wrap(types.ErrGeneration, lastErr)
}

func (c *Composer) pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return items[c.rng.Intn(len(items))]
}

func (c *Composer) chance(p float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < p
}

// maybeMention returns "<callout> @handle" for a peer persona, or "".
// The handle is the final token so no punctuation is attached to it.
func (c *Composer) maybeMention(p *types.PersonaProfile, peers map[types.PersonaID]string) string {
	if len(peers) == 0 || !c.chance(c.MentionRate) {
		return ""
	}
	candidates := make([]string, 0, len(peers))
	for _, id := range p.PeerPreferences {
		if h := types.NormalizeHandle(peers[id]); id != p.ID && h != "" {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		for _, id := range c.profiles.IDs() {
			if h := types.NormalizeHandle(peers[id]); id != p.ID && h != "" {
				candidates = append(candidates, h)
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	callout := c.pick(p.Callouts)
	if callout == "" {
		callout = "Thoughts,"
	}
	return callout + " @" + c.pick(candidates)
}

func (c *Composer) peerByHandle(handle string, peers map[types.PersonaID]string) *types.PersonaProfile {
	handle = strings.ToLower(types.NormalizeHandle(handle))
	if handle == "" {
		return nil
	}
	for id, h := range peers {
		if strings.ToLower(types.NormalizeHandle(h)) == handle {
			if p, ok := c.profiles.Profile(id); ok {
				return p
			}
		}
	}
	return nil
}

func (c *Composer) templatePost(p *types.PersonaProfile, topic types.TopicCandidate, link, mention string) string {
	var sb strings.Builder
	sb.WriteString(c.pick(p.Templates.Opener))
	sb.WriteString(" ")
	sb.WriteString(strings.TrimSpace(topic.Title))
	sb.WriteString("\n\n")
	sb.WriteString(c.pick(p.Templates.Take))
	sb.WriteString(" ")
	if mention != "" {
		sb.WriteString(mention)
		sb.WriteString(" ")
	}
	sb.WriteString(c.pick(p.Templates.Closer))
	if link != "" {
		sb.WriteString("\n")
		sb.WriteString(link)
	}
	return ClampPreserveURL(strings.TrimSpace(sb.String()), c.MaxChars)
}

func (c *Composer) templateReply(p *types.PersonaProfile) string {
	q := p.Question
	if q == "" {
		q = "What do you think is the wisest next step?"
	}
	parts := []string{
		c.pick(p.Templates.Opener),
		c.pick(p.Templates.Take),
		c.pick(p.Templates.Closer),
		q,
	}
	return ClampText(strings.Join(strings.Fields(strings.Join(parts, " ")), " "), c.MaxChars)
}
