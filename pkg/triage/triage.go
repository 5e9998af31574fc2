// Package triage filters and orders inbound notifications for replying.
package triage

import (
	"sort"
	"strings"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// AnsweredSet answers membership for already-answered notification keys.
type AnsweredSet interface {
	Contains(key string) bool
}

// Triage selects unanswered notifications.
type Triage struct {
	knownHandles map[string]types.PersonaID
	now          func() time.Time
}

// New creates a triage over the given persona handles. Handles are compared
// case-insensitively, without a leading "@".
func New(handles map[types.PersonaID]string, now func() time.Time) *Triage {
	if now == nil {
		now = time.Now
	}
	known := make(map[string]types.PersonaID, len(handles))
	for id, h := range handles {
		if h = foldHandle(h); h != "" {
			known[h] = id
		}
	}
	return &Triage{knownHandles: known, now: now}
}

// PersonaFor returns the persona owning handle, if any.
func (t *Triage) PersonaFor(handle string) (types.PersonaID, bool) {
	id, ok := t.knownHandles[foldHandle(handle)]
	return id, ok
}

// SelectUnanswered returns the notifications persona id should consider
// answering, highest priority first, newest first within a priority.
// Items older than lookback, already answered, keyless or authored by the
// persona itself are dropped. A lookback <= 0 disables the age filter.
func (t *Triage) SelectUnanswered(id types.PersonaID, notes []types.NotificationCandidate, answered AnsweredSet, lookback time.Duration) []types.NotificationCandidate {
	var cutoff time.Time
	if lookback > 0 {
		cutoff = t.now().Add(-lookback)
	}

	out := make([]types.NotificationCandidate, 0, len(notes))
	seen := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		if n.Key == "" {
			continue
		}
		if lookback > 0 && n.IndexedAt.Before(cutoff) {
			continue
		}
		if answered != nil && answered.Contains(n.Key) {
			continue
		}
		if _, dup := seen[n.Key]; dup {
			continue
		}

		author, known := t.PersonaFor(n.AuthorHandle)
		if known && author == id {
			continue
		}
		seen[n.Key] = struct{}{}

		n.IsFromKnownPersona = known
		n.Priority = types.PriorityAudience
		if known {
			n.Priority = types.PriorityPersona
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].IndexedAt.After(out[j].IndexedAt)
	})
	return out
}

func foldHandle(h string) string {
	return strings.ToLower(types.NormalizeHandle(h))
}
