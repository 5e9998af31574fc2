package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestJournal_DayShardsAndResume(t *testing.T) {
	dir := t.TempDir()
	day1 := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	day2 := day1.Add(time.Hour)

	j, err := Open(dir, fixedClock(day1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := j.Append(Event{Timestamp: day1, RunID: "r1", Persona: "RUTH", Action: "reply", Result: "ok"}); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := j.Append(Event{Timestamp: day2, RunID: "r1", Persona: "BRYCE", Action: "post", Result: "ok", Key: "at://x"}); err != nil {
		t.Fatalf("Append(day2): %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err := LoadIndex(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if idx.TotalEvents != 4 || len(idx.Shards) != 2 {
		t.Fatalf("index = %+v", idx)
	}
	if idx.Shards[0].File != "activity-2026-03-01.jsonl" || idx.Shards[0].Events != 3 {
		t.Errorf("shard1 = %+v", idx.Shards[0])
	}
	if idx.Shards[1].File != "activity-2026-03-02.jsonl" || idx.Shards[1].Events != 1 {
		t.Errorf("shard2 = %+v", idx.Shards[1])
	}

	// Reopen and keep appending to the same day.
	j2, err := Open(dir, fixedClock(day2))
	if err != nil {
		t.Fatalf("Open(resume): %v", err)
	}
	if err := j2.Append(Event{Persona: "JERRY", Action: "post", Result: "failed", Error: "boom"}); err != nil {
		t.Fatalf("Append(resume): %v", err)
	}
	_ = j2.Close()

	if got := j2.Index(); got.TotalEvents != 5 || got.Shards[1].Events != 2 {
		t.Errorf("resumed index = %+v", got)
	}

	events, err := ReadDay(dir, "2026-03-02")
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(events) != 2 || events[1].Persona != "JERRY" || !events[1].Timestamp.Equal(day2) {
		t.Errorf("events = %+v", events)
	}
}

func TestRebuild(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("activity-2026-02-28.jsonl", "{\"persona\":\"RUTH\"}\n\nnot json\n{\"persona\":\"KENNY\"}\n")
	write("activity-2026-02-27.jsonl", "{\"persona\":\"ANDREA\"}\n")
	write("activity-latest.jsonl", "{}\n")
	write("notes.txt", "ignored")

	idx, err := Rebuild(dir, time.Now())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(idx.Shards) != 2 || idx.TotalEvents != 3 {
		t.Fatalf("index = %+v", idx)
	}
	if idx.Shards[0].Day != "2026-02-27" || idx.Shards[1].Events != 2 {
		t.Errorf("shards = %+v", idx.Shards)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.json")); err != nil {
		t.Errorf("index not written: %v", err)
	}
}

func TestOpen_RebuildsCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "activity-2026-03-01.jsonl"), []byte("{}\n{}\n"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "index.json"), []byte("{broken"), 0644)

	j, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	if idx := j.Index(); idx.TotalEvents != 2 {
		t.Errorf("TotalEvents = %d, want 2", idx.TotalEvents)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.Append(Event{}); err != nil {
		t.Errorf("nil journal Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("nil journal Close: %v", err)
	}
}
