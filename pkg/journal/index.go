package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Index is a manifest of day shards, so readers can page through the
// journal newest-first without scanning every file.
type Index struct {
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`

	// Shards are ordered oldest -> newest.
	Shards []Shard `json:"shards"`

	TotalEvents int `json:"total_events"`
}

// Shard is one day of events.
type Shard struct {
	Day    string `json:"day"`    // YYYY-MM-DD, UTC
	File   string `json:"file"`   // relative to the journal directory
	Events int    `json:"events"` // number of JSONL lines (best-effort)
}

// LoadIndex reads an index file.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Version == 0 {
		idx.Version = 1
	}
	return idx, nil
}

// SaveIndexAtomic writes idx via a temp file and rename.
func SaveIndexAtomic(path string, idx *Index, now time.Time) error {
	if idx == nil {
		return nil
	}
	if idx.Version <= 0 {
		idx.Version = 1
	}
	idx.GeneratedAt = now.UTC()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (idx *Index) shard(day string) *Shard {
	for i := range idx.Shards {
		if idx.Shards[i].Day == day {
			return &idx.Shards[i]
		}
	}
	idx.Shards = append(idx.Shards, Shard{Day: day, File: shardFile(day)})
	sort.Slice(idx.Shards, func(i, j int) bool { return idx.Shards[i].Day < idx.Shards[j].Day })
	for i := range idx.Shards {
		if idx.Shards[i].Day == day {
			return &idx.Shards[i]
		}
	}
	return nil
}

func (idx *Index) recount() {
	total := 0
	for _, s := range idx.Shards {
		total += s.Events
	}
	idx.TotalEvents = total
}
