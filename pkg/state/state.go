// Package state implements the persisted run state shared across runs.
//
// The whole state is a single JSON document. It is loaded once per run,
// mutated in memory by the orchestrator and replaced wholesale on save.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 1

// Default set capacities.
const (
	DefaultTopicCap        = 200
	DefaultNotificationCap = 250
)

// Counters are advisory per-persona aggregates. Nothing depends on them for
// correctness.
type Counters struct {
	Posts         int        `json:"posts"`
	Replies       int        `json:"replies"`
	PostFailures  int        `json:"post_failures"`
	ReplyFailures int        `json:"reply_failures"`
	LoginFailures int        `json:"login_failures"`
	LastPostAt    *time.Time `json:"last_post_at,omitempty"`
	LastReplyAt   *time.Time `json:"last_reply_at,omitempty"`
}

// PersonaState tracks what one persona has already acted on.
type PersonaState struct {
	SeenTopicKeys            *KeySet  `json:"seen_topic_keys"`
	AnsweredNotificationKeys *KeySet  `json:"answered_notification_keys"`
	Counters                 Counters `json:"counters"`
}

// RunState is the single persisted document.
type RunState struct {
	mu sync.RWMutex

	Version          int                               `json:"version"`
	LastRunTimestamp *time.Time                        `json:"last_run_timestamp"`
	PerPersona       map[types.PersonaID]*PersonaState `json:"per_persona"`
}

// NewRunState returns an empty, well-formed state.
func NewRunState() *RunState {
	return &RunState{
		Version:    CurrentVersion,
		PerPersona: make(map[types.PersonaID]*PersonaState),
	}
}

// persona returns the state for id, creating it if needed. Callers hold mu.
func (s *RunState) persona(id types.PersonaID, topicCap, noteCap int) *PersonaState {
	ps, ok := s.PerPersona[id]
	if !ok || ps == nil {
		ps = &PersonaState{}
		s.PerPersona[id] = ps
	}
	if ps.SeenTopicKeys == nil {
		ps.SeenTopicKeys = NewKeySet(topicCap)
	}
	if ps.AnsweredNotificationKeys == nil {
		ps.AnsweredNotificationKeys = NewKeySet(noteCap)
	}
	return ps
}

// Snapshot returns copies of a persona's key sets and counters.
func (s *RunState) Snapshot(id types.PersonaID) (seen, answered []string, counters Counters) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := s.PerPersona[id]
	if ps == nil {
		return nil, nil, Counters{}
	}
	return ps.SeenTopicKeys.Keys(), ps.AnsweredNotificationKeys.Keys(), ps.Counters
}

// Personas returns the ids present in the state.
func (s *RunState) Personas() []types.PersonaID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]types.PersonaID, 0, len(s.PerPersona))
	for id := range s.PerPersona {
		ids = append(ids, id)
	}
	return ids
}

// Store reads and writes the RunState document at a fixed path.
type Store struct {
	path            string
	topicCap        int
	notificationCap int
	logger          logrus.FieldLogger
	now             func() time.Time
}

// Options configures a Store.
type Options struct {
	TopicCap        int
	NotificationCap int
	Logger          logrus.FieldLogger
	Now             func() time.Time
}

// NewStore creates a store for the document at path.
func NewStore(path string, opts Options) *Store {
	if opts.TopicCap <= 0 {
		opts.TopicCap = DefaultTopicCap
	}
	if opts.NotificationCap <= 0 {
		opts.NotificationCap = DefaultNotificationCap
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		path:            path,
		topicCap:        opts.TopicCap,
		notificationCap: opts.NotificationCap,
		logger:          opts.Logger.WithField("component", "state"),
		now:             opts.Now,
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted document. It never fails: a missing or corrupt
// document yields a fresh state, which is written back so later reads are
// stable.
func (s *Store) Load() *RunState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("No state file, starting fresh")
		} else {
			s.logger.WithError(types.Wrap(types.ErrStateIO, err)).Warn("Failed to read state, starting fresh")
		}
		return s.fresh()
	}

	st, err := s.decode(data)
	if err != nil {
		s.logger.WithError(types.Wrap(types.ErrStateIO, err)).Warn("Corrupt state, starting fresh")
		return s.fresh()
	}
	s.logger.WithField("personas", len(st.PerPersona)).Info("State loaded")
	return st
}

func (s *Store) fresh() *RunState {
	st := NewRunState()
	if err := s.write(st); err != nil {
		s.logger.WithError(err).Warn("Could not create state file")
	}
	return st
}

func (s *Store) decode(data []byte) (*RunState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if doc.Version > CurrentVersion {
		s.logger.WithField("version", doc.Version).Warn("State written by a newer schema, keeping known fields")
	}

	st := NewRunState()
	st.LastRunTimestamp = doc.LastRunTimestamp
	for id, ps := range doc.PerPersona {
		if ps == nil {
			continue
		}
		st.PerPersona[id] = ps
	}
	if doc.isLegacy() {
		st.LastRunTimestamp = doc.LastRunUTC
		migrateLegacy(st, &doc)
	}
	for id := range st.PerPersona {
		ps := st.persona(id, s.topicCap, s.notificationCap)
		ps.SeenTopicKeys.SetLimit(s.topicCap)
		ps.AnsweredNotificationKeys.SetLimit(s.notificationCap)
	}
	return st, nil
}

// Save replaces the persisted document with state, stamping the current
// time. On failure the previous document is left intact.
func (s *Store) Save(st *RunState) error {
	st.mu.Lock()
	now := s.now().UTC()
	st.LastRunTimestamp = &now
	st.Version = CurrentVersion
	st.mu.Unlock()

	if err := s.write(st); err != nil {
		s.logger.WithError(err).Error("Failed to save state")
		return err
	}
	return nil
}

func (s *Store) write(st *RunState) error {
	st.mu.RLock()
	data, err := json.MarshalIndent(st, "", "  ")
	st.mu.RUnlock()
	if err != nil {
		return types.Wrap(types.ErrStateIO, fmt.Errorf("encode state: %w", err))
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return types.Wrap(types.ErrStateIO, err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// MarkTopicSeen records that id has posted about key.
func (s *Store) MarkTopicSeen(st *RunState, id types.PersonaID, key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.persona(id, s.topicCap, s.notificationCap).SeenTopicKeys.Insert(key)
}

// MarkNotificationAnswered records that id has replied to key.
func (s *Store) MarkNotificationAnswered(st *RunState, id types.PersonaID, key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.persona(id, s.topicCap, s.notificationCap).AnsweredNotificationKeys.Insert(key)
}

// WasNotificationAnswered reports whether id already replied to key.
func (s *Store) WasNotificationAnswered(st *RunState, id types.PersonaID, key string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ps := st.PerPersona[id]
	return ps != nil && ps.AnsweredNotificationKeys.Contains(key)
}

// WasTopicSeen reports whether id already posted about key.
func (s *Store) WasTopicSeen(st *RunState, id types.PersonaID, key string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ps := st.PerPersona[id]
	return ps != nil && ps.SeenTopicKeys.Contains(key)
}

// SeenTopics returns a read-only view of id's seen topic keys.
func (s *Store) SeenTopics(st *RunState, id types.PersonaID) *View {
	return &View{st: st, id: id, topics: true}
}

// AnsweredNotifications returns a read-only view of id's answered keys.
func (s *Store) AnsweredNotifications(st *RunState, id types.PersonaID) *View {
	return &View{st: st, id: id}
}

// UpdateCounters applies fn to id's counters under the state lock.
func (s *Store) UpdateCounters(st *RunState, id types.PersonaID, fn func(*Counters)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.persona(id, s.topicCap, s.notificationCap).Counters)
}

// View is a live, lock-respecting membership check over one persona set.
type View struct {
	st     *RunState
	id     types.PersonaID
	topics bool
}

// Contains reports whether key is in the viewed set.
func (v *View) Contains(key string) bool {
	v.st.mu.RLock()
	defer v.st.mu.RUnlock()
	ps := v.st.PerPersona[v.id]
	if ps == nil {
		return false
	}
	if v.topics {
		return ps.SeenTopicKeys.Contains(key)
	}
	return ps.AnsweredNotificationKeys.Contains(key)
}
