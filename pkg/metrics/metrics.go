// Package metrics holds the Prometheus metrics of a bot run. A run is a
// short-lived process, so metrics are exported as a node_exporter textfile
// rather than scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Action results.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Recorder holds all run metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	Actions     *prometheus.CounterVec
	LastRun     prometheus.Gauge
	RunDuration prometheus.Histogram
	Engagement  *prometheus.GaugeVec
}

// NewRecorder creates and registers the run metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integral_bots_actions_total",
			Help: "Persona actions by kind and result.",
		}, []string{"persona", "action", "result"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "integral_bots_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "integral_bots_run_duration_seconds",
			Help:    "Wall time of a full run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		Engagement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "integral_bots_recent_engagement",
			Help: "Summed engagement of each persona's recent posts at the last refresh.",
		}, []string{"persona"}),
	}
	r.registry.MustRegister(r.Actions, r.LastRun, r.RunDuration, r.Engagement)
	return r
}

// Action counts one persona action.
func (r *Recorder) Action(id types.PersonaID, action, result string) {
	if r == nil {
		return
	}
	r.Actions.WithLabelValues(string(id), action, result).Inc()
}

// SetEngagement records the summed engagement of a persona's recent posts.
func (r *Recorder) SetEngagement(id types.PersonaID, total int) {
	if r == nil {
		return
	}
	r.Engagement.WithLabelValues(string(id)).Set(float64(total))
}

// RunFinished records the run duration and completion time.
func (r *Recorder) RunFinished(started, finished time.Time) {
	if r == nil {
		return
	}
	r.RunDuration.Observe(finished.Sub(started).Seconds())
	r.LastRun.Set(float64(finished.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format. The file
// is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
