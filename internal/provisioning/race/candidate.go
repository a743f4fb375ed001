package race

import (
	"fmt"
	"time"

	"github.com/imamik/gpurace/internal/offer"
)

// CandidateStatus is a candidate's lifecycle state.
type CandidateStatus string

const (
	StatusPending    CandidateStatus = "pending"    // constructed, not yet dispatched
	StatusConnecting CandidateStatus = "connecting" // provisioning call in flight
	StatusConnected  CandidateStatus = "connected"  // usable, the winner
	StatusFailed     CandidateStatus = "failed"     // provider reported an error
	StatusCancelled  CandidateStatus = "cancelled"  // stopped tracking, torn down
)

var validTransitions = map[CandidateStatus]map[CandidateStatus]bool{
	StatusPending: {
		StatusConnecting: true,
		StatusCancelled:  true, // race ended before dispatch
	},
	StatusConnecting: {
		StatusConnected: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusConnected: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ValidateTransition checks if a candidate status transition is valid.
func ValidateTransition(from, to CandidateStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown candidate status: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s CandidateStatus) IsTerminal() bool {
	return s == StatusConnected || s == StatusFailed || s == StatusCancelled
}

// Candidate wraps one offer for the duration of a race. It is owned by the
// Session and frozen once terminal.
type Candidate struct {
	Offer      offer.Offer
	Status     CandidateStatus
	Progress   int
	Error      string
	Round      int
	LaunchedAt time.Time
	TerminalAt time.Time
}

// ID returns the candidate identifier, which is the offer ID.
func (c *Candidate) ID() string {
	return c.Offer.ID
}

func newCandidate(o offer.Offer, round int, now time.Time) *Candidate {
	return &Candidate{Offer: o, Status: StatusPending, Round: round, LaunchedAt: now}
}

func (c *Candidate) transition(to CandidateStatus, now time.Time) error {
	if err := ValidateTransition(c.Status, to); err != nil {
		return fmt.Errorf("candidate %s: %w", c.ID(), err)
	}
	c.Status = to
	if to.IsTerminal() {
		c.TerminalAt = now
	}
	return nil
}

// report records progress. It only moves forward and only while connecting.
func (c *Candidate) report(pct int) bool {
	if c.Status != StatusConnecting {
		return false
	}
	pct = max(0, min(pct, 100))
	if pct <= c.Progress {
		return false
	}
	c.Progress = pct
	return true
}

func (c *Candidate) fail(msg string, now time.Time) error {
	if err := c.transition(StatusFailed, now); err != nil {
		return err
	}
	c.Error = msg
	return nil
}
