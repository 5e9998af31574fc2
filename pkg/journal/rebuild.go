package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Rebuild re-derives index.json from the shard files in dir and writes it.
// Lines that are not valid JSON are not counted.
func Rebuild(dir string, now time.Time) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	idx := &Index{Version: 1}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		day, ok := parseShardDay(e.Name())
		if !ok {
			continue
		}
		idx.Shards = append(idx.Shards, Shard{
			Day:    day,
			File:   e.Name(),
			Events: countEvents(filepath.Join(dir, e.Name())),
		})
	}
	sort.Slice(idx.Shards, func(i, j int) bool { return idx.Shards[i].Day < idx.Shards[j].Day })
	idx.recount()

	if err := SaveIndexAtomic(filepath.Join(dir, indexName), idx, now); err != nil {
		return nil, err
	}
	return idx, nil
}

func parseShardDay(name string) (string, bool) {
	if !strings.HasPrefix(name, shardPrefix) || !strings.HasSuffix(name, shardSuffix) {
		return "", false
	}
	day := strings.TrimSuffix(strings.TrimPrefix(name, shardPrefix), shardSuffix)
	if _, err := time.Parse(dayLayout, day); err != nil {
		return "", false
	}
	return day, true
}

func countEvents(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	n := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && json.Valid(line) {
			n++
		}
	}
	return n
}

// ReadDay returns the events logged on day (YYYY-MM-DD). Malformed lines
// are skipped.
func ReadDay(dir, day string) ([]Event, error) {
	f, err := os.Open(filepath.Join(dir, shardFile(day)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
