// Package journal keeps an append-only activity log of what the personas
// did, sharded by UTC day.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

const (
	shardPrefix = "activity-"
	shardSuffix = ".jsonl"
	dayLayout   = "2006-01-02"
	indexName   = "index.json"
)

// Event is one journal line.
type Event struct {
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"run_id"`
	Persona   types.PersonaID `json:"persona"`
	Action    string          `json:"action"` // login, reply, post, metrics
	Result    string          `json:"result"` // ok, failed, skipped
	Key       string          `json:"key,omitempty"`
	TopicKey  string          `json:"topic_key,omitempty"`
	Text      string          `json:"text,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func shardFile(day string) string {
	return shardPrefix + day + shardSuffix
}

// Journal appends events to day shards and keeps index.json current.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
	idx *Index

	curDay    string
	curFile   *os.File
	curWriter *bufio.Writer
}

// Open opens or creates a journal in dir. A missing or unreadable index is
// rebuilt from the shards on disk.
func Open(dir string, now func() time.Time) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	j := &Journal{dir: dir, now: now}
	idx, err := LoadIndex(filepath.Join(dir, indexName))
	if err != nil {
		idx, err = Rebuild(dir, now())
		if err != nil {
			return nil, fmt.Errorf("rebuild journal index: %w", err)
		}
	}
	j.idx = idx
	return j, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

// Append writes ev to the shard for its day. A zero timestamp is stamped
// with the current time.
func (j *Journal) Append(ev Event) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = j.now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	day := ev.Timestamp.Format(dayLayout)

	if err := j.openDay(day); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := j.curWriter.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := j.curWriter.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}

	j.idx.shard(day).Events++
	j.idx.recount()
	return SaveIndexAtomic(filepath.Join(j.dir, indexName), j.idx, j.now())
}

func (j *Journal) openDay(day string) error {
	if j.curDay == day && j.curWriter != nil {
		return nil
	}
	if err := j.closeCurrent(); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(j.dir, shardFile(day)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	j.curDay = day
	j.curFile = f
	j.curWriter = bufio.NewWriter(f)
	return nil
}

func (j *Journal) closeCurrent() error {
	var err error
	if j.curWriter != nil {
		err = j.curWriter.Flush()
	}
	if j.curFile != nil {
		if closeErr := j.curFile.Close(); err == nil {
			err = closeErr
		}
	}
	j.curDay, j.curFile, j.curWriter = "", nil, nil
	return err
}

// Index returns a copy of the current index.
func (j *Journal) Index() Index {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *j.idx
	cp.Shards = append([]Shard(nil), j.idx.Shards...)
	return cp
}

// Close flushes and closes the open shard.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeCurrent()
}
