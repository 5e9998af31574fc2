package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// PersonaReport summarizes one persona's pass.
type PersonaReport struct {
	ID      types.PersonaID `json:"id"`
	Stage   Stage           `json:"stage"`
	Failed  bool            `json:"failed"`
	Replies int             `json:"replies"`
	Posts   int             `json:"posts"`
	Errors  []string        `json:"errors,omitempty"`
}

func (p *PersonaReport) fail(stage Stage, err error) {
	if stage == StageLogin {
		p.Failed = true
	}
	p.Errors = append(p.Errors, errorText(stage, err))
}

// Report summarizes a run.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Personas   []PersonaReport `json:"personas"`
	StateErr   string          `json:"state_error,omitempty"`
}

// Posts returns the number of posts made across all personas.
func (r *Report) Posts() int {
	n := 0
	for _, p := range r.Personas {
		n += p.Posts
	}
	return n
}

// Replies returns the number of replies made across all personas.
func (r *Report) Replies() int {
	n := 0
	for _, p := range r.Personas {
		n += p.Replies
	}
	return n
}

// Persona returns the report for id, or nil.
func (r *Report) Persona(id types.PersonaID) *PersonaReport {
	for i := range r.Personas {
		if r.Personas[i].ID == id {
			return &r.Personas[i]
		}
	}
	return nil
}

// WriteSummary prints one line per persona followed by the totals.
func (r *Report) WriteSummary(w io.Writer) {
	for _, p := range r.Personas {
		status := "ok"
		if p.Failed {
			status = "failed"
		}
		fmt.Fprintf(w, "%-8s %-14s %-6s replies=%d posts=%d errors=%d\n",
			p.ID, p.Stage, status, p.Replies, p.Posts, len(p.Errors))
	}
	fmt.Fprintf(w, "run %s: %d replies, %d posts in %s\n",
		r.RunID, r.Replies(), r.Posts(), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
