// Package eta estimates time remaining in a race from candidate progress.
//
// Estimates are a heuristic for display only. Nothing in the race engine
// reads them back to make decisions.
package eta

import (
	"fmt"
	"slices"
	"time"
)

// Guards against noisy early estimates.
const (
	DefaultMinSample   = 3 * time.Second
	DefaultMinProgress = 10
)

// Kind tells how an Estimate should be read.
type Kind string

// Estimate kinds.
const (
	KindDone         Kind = "done"
	KindNoCandidates Kind = "no active candidates"
	KindEstimating   Kind = "estimating"
	KindRemaining    Kind = "remaining"
)

// Estimate is a non-authoritative remaining-time estimate. Remaining is only
// meaningful when Kind is KindRemaining.
type Estimate struct {
	Kind      Kind
	Remaining time.Duration
}

// String renders the estimate for display.
func (e Estimate) String() string {
	if e.Kind == KindRemaining {
		return fmt.Sprintf("~%s remaining", FormatDuration(e.Remaining))
	}
	return string(e.Kind)
}

// Estimator holds the noise guards.
type Estimator struct {
	MinSample   time.Duration
	MinProgress int
}

// Default returns an estimator with the 3s / 10% guards.
func Default() Estimator {
	return Estimator{MinSample: DefaultMinSample, MinProgress: DefaultMinProgress}
}

// Estimate extrapolates linearly from the furthest active candidate.
// active holds the progress of every non-terminal candidate.
func (e Estimator) Estimate(elapsed time.Duration, active []int, hasWinner bool) Estimate {
	if hasWinner {
		return Estimate{Kind: KindDone}
	}
	if len(active) == 0 {
		return Estimate{Kind: KindNoCandidates}
	}

	maxProgress := min(slices.Max(active), 100)
	if elapsed < e.MinSample || maxProgress <= e.MinProgress {
		return Estimate{Kind: KindEstimating}
	}

	total := time.Duration(float64(elapsed) * 100 / float64(maxProgress))
	remaining := max(total-elapsed, 0)
	return Estimate{Kind: KindRemaining, Remaining: remaining.Round(time.Second)}
}

// Compute runs the default estimator.
func Compute(elapsed time.Duration, active []int, hasWinner bool) Estimate {
	return Default().Estimate(elapsed, active, hasWinner)
}

// FormatDuration formats a duration for display (e.g. "1m30s", "45s").
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}
