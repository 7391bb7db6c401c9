package analysis

import (
	"time"

	"github.com/abhisek/opoplan/internal/schedule"
)

// Generation states reported to polling clients.
const (
	StateGenerating = "generating"
	StateReady      = "ready"
	StateFailed     = "failed"
)

// GenerationInput is what the status check needs to know about a plan.
type GenerationInput struct {
	Active       bool
	TaskFailed   bool
	TaskError    string
	SessionCount int
	First, Last  time.Time
}

// GenerationReport answers "are the sessions there yet?".
type GenerationReport struct {
	State        string        `json:"state"`
	SessionCount int           `json:"sessionCount"`
	FirstDate    schedule.Date `json:"firstDate"`
	LastDate     schedule.Date `json:"lastDate"`
	Error        string        `json:"error,omitempty"`
}

// GenerationStatus maps a plan to its generation state. An ACTIVE plan with
// no sessions whose task has not failed is still generating.
func GenerationStatus(in GenerationInput) GenerationReport {
	r := GenerationReport{SessionCount: in.SessionCount}
	if !in.First.IsZero() {
		r.FirstDate = schedule.NewDate(in.First)
	}
	if !in.Last.IsZero() {
		r.LastDate = schedule.NewDate(in.Last)
	}
	switch {
	case in.TaskFailed:
		r.State = StateFailed
		r.Error = in.TaskError
	case in.SessionCount > 0:
		r.State = StateReady
	case in.Active:
		r.State = StateGenerating
	default:
		r.State = StateFailed
	}
	return r
}
