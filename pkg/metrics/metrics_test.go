package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Action("RUTH", "post", ResultOK)
	r.Action("RUTH", "post", ResultOK)
	r.Action("BRYCE", "reply", ResultFailed)
	r.SetEngagement("RUTH", 12)

	start := time.Unix(1_700_000_000, 0)
	r.RunFinished(start, start.Add(42*time.Second))

	path := filepath.Join(t.TempDir(), "textfile", "integral_bots.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		`integral_bots_actions_total{action="post",persona="RUTH",result="ok"} 2`,
		`integral_bots_actions_total{action="reply",persona="BRYCE",result="failed"} 1`,
		`integral_bots_recent_engagement{persona="RUTH"} 12`,
		`integral_bots_last_run_timestamp_seconds 1.700000042e+09`,
		`integral_bots_run_duration_seconds_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Action("RUTH", "post", ResultOK)
	r.SetEngagement("RUTH", 1)
	r.RunFinished(time.Now(), time.Now())
	if err := r.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Errorf("nil recorder should not write: %v", err)
	}
	if err := NewRecorder().WriteTextfile(""); err != nil {
		t.Errorf("empty path should be a no-op: %v", err)
	}
}
