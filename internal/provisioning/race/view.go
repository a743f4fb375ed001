package race

import (
	"time"

	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/offer"
)

// CandidateView is a copy of one candidate's state.
type CandidateView struct {
	Offer      offer.Offer     `json:"offer"`
	Status     CandidateStatus `json:"status"`
	Progress   int             `json:"progress"`
	Error      string          `json:"error,omitempty"`
	Round      int             `json:"round"`
	LaunchedAt time.Time       `json:"launched_at"`
	TerminalAt time.Time       `json:"terminal_at,omitzero"`
}

// View is a point-in-time copy of a race, safe to hold across goroutines.
type View struct {
	SessionID  string          `json:"session_id"`
	Status     SessionStatus   `json:"status"`
	Round      int             `json:"round"`
	MaxRounds  int             `json:"max_rounds"`
	Candidates []CandidateView `json:"candidates"`
	Winner     *offer.Offer    `json:"winner,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Elapsed    time.Duration   `json:"elapsed"`

	// ETA is a display heuristic derived from the fields above. It is not
	// race state and nothing in the engine acts on it.
	ETA eta.Estimate `json:"-"`
}

// Count returns the number of candidates in status.
func (v View) Count(status CandidateStatus) int {
	n := 0
	for _, c := range v.Candidates {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Active returns the number of non-terminal candidates.
func (v View) Active() int {
	return v.Count(StatusPending) + v.Count(StatusConnecting)
}

// MaxProgress returns the highest progress among connecting candidates.
func (v View) MaxProgress() int {
	best := 0
	for _, c := range v.Candidates {
		if c.Status == StatusConnecting && c.Progress > best {
			best = c.Progress
		}
	}
	return best
}

// Failures returns the failed candidates in launch order.
func (v View) Failures() []CandidateView {
	var out []CandidateView
	for _, c := range v.Candidates {
		if c.Status == StatusFailed {
			out = append(out, c)
		}
	}
	return out
}
