package race

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelledByUser is the outcome error of a race the caller cancelled.
	ErrCancelledByUser = errors.New("race cancelled by user")
	// ErrRaceFinished is returned when acting on a race that already ended.
	ErrRaceFinished = errors.New("race already finished")
	// ErrNoCandidates is returned when a race is started with nothing to race.
	ErrNoCandidates = errors.New("no candidates to race")
)

// deadlineMessage is recorded for candidates still connecting when the last
// round timed out.
const deadlineMessage = "cancelled: race deadline reached"

// CandidateError is a per-candidate provisioning failure. It never aborts a
// race on its own.
type CandidateError struct {
	CandidateID string
	Round       int
	Message     string
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s (round %d): %s", e.CandidateID, e.Round, e.Message)
}

// ExhaustedError reports a race that used every round without a winner.
type ExhaustedError struct {
	Rounds   int
	Failures []*CandidateError
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "race exhausted after %d round(s) with no winner (%d candidate error(s))", e.Rounds, len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  - ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every candidate failure to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Messages returns one line per candidate failure.
func (e *ExhaustedError) Messages() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Error()
	}
	return out
}

// IsExhausted reports whether err is or wraps an ExhaustedError.
func IsExhausted(err error) bool {
	var target *ExhaustedError
	return errors.As(err, &target)
}
