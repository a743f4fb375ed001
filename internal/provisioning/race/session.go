package race

import (
	"fmt"
	"time"

	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/offer"
)

// SessionStatus is the overall race state.
type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionRunning   SessionStatus = "running"
	SessionSucceeded SessionStatus = "succeeded"
	SessionExhausted SessionStatus = "exhausted"
	SessionCancelled SessionStatus = "cancelled-by-user"
)

// IsTerminal reports whether the session has ended.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionSucceeded || s == SessionExhausted || s == SessionCancelled
}

// Update is an event reported by a provisioning goroutine.
type Update interface {
	candidate() string
}

// Dispatched marks a candidate's provisioning call as started.
type Dispatched struct{ CandidateID string }

// Progressed reports provisioning progress in percent.
type Progressed struct {
	CandidateID string
	Percent     int
}

// Connected reports a usable instance.
type Connected struct{ CandidateID string }

// Failed reports a provisioning error.
type Failed struct {
	CandidateID string
	Err         error
}

func (u Dispatched) candidate() string { return u.CandidateID }
func (u Progressed) candidate() string { return u.CandidateID }
func (u Connected) candidate() string  { return u.CandidateID }
func (u Failed) candidate() string     { return u.CandidateID }

// Transition is the effect of one applied update.
type Transition struct {
	Candidate *Candidate
	From      CandidateStatus
	To        CandidateStatus
	// Cancelled lists siblings cancelled together with a win.
	Cancelled []*Candidate
	Won       bool
}

// Session is the race aggregate. All mutation goes through its methods,
// which the coordinator calls from a single goroutine.
type Session struct {
	ID         string
	Status     SessionStatus
	Candidates []*Candidate
	Round      int
	MaxRounds  int
	Winner     *offer.Offer
	StartedAt  time.Time
	EndedAt    time.Time
	// Err is the terminal error: *ExhaustedError or ErrCancelledByUser.
	Err error

	index map[string]*Candidate
}

// NewSession creates an idle session.
func NewSession(id string, maxRounds int) *Session {
	return &Session{
		ID:        id,
		Status:    SessionIdle,
		MaxRounds: max(maxRounds, 1),
		index:     make(map[string]*Candidate),
	}
}

// Start moves an idle session to running.
func (s *Session) Start(now time.Time) error {
	if s.Status != SessionIdle {
		return fmt.Errorf("session %s: cannot start from %s", s.ID, s.Status)
	}
	s.Status = SessionRunning
	s.StartedAt = now
	return nil
}

// Launch opens the next round with the given offers as pending candidates.
func (s *Session) Launch(offers []offer.Offer, now time.Time) ([]*Candidate, error) {
	if s.Status != SessionRunning {
		return nil, fmt.Errorf("session %s: cannot launch round while %s", s.ID, s.Status)
	}
	if s.Round >= s.MaxRounds {
		return nil, fmt.Errorf("session %s: round %d would exceed max rounds %d", s.ID, s.Round+1, s.MaxRounds)
	}
	for _, o := range offers {
		if _, dup := s.index[o.ID]; dup {
			return nil, fmt.Errorf("session %s: candidate %s already launched", s.ID, o.ID)
		}
	}

	s.Round++
	launched := make([]*Candidate, 0, len(offers))
	for _, o := range offers {
		c := newCandidate(o, s.Round, now)
		s.Candidates = append(s.Candidates, c)
		s.index[o.ID] = c
		launched = append(launched, c)
	}
	return launched, nil
}

// Apply feeds one update through the reducer. Updates that do not fit the
// current state (late events, unknown candidates, anything after the race
// ended) are ignored and reported with ok=false.
func (s *Session) Apply(u Update, now time.Time) (t Transition, ok bool) {
	if s.Status != SessionRunning {
		return Transition{}, false
	}
	c := s.index[u.candidate()]
	if c == nil {
		return Transition{}, false
	}
	t = Transition{Candidate: c, From: c.Status, To: c.Status}

	switch u := u.(type) {
	case Dispatched:
		if c.transition(StatusConnecting, now) != nil {
			return Transition{}, false
		}
	case Progressed:
		if !c.report(u.Percent) {
			return Transition{}, false
		}
	case Connected:
		if c.transition(StatusConnected, now) != nil {
			return Transition{}, false
		}
		won := c.Offer
		s.Winner = &won
		t.Cancelled = s.cancelActive(now)
		t.Won = true
		s.finish(SessionSucceeded, nil, now)
	case Failed:
		msg := "unknown error"
		if u.Err != nil {
			msg = u.Err.Error()
		}
		if c.fail(msg, now) != nil {
			return Transition{}, false
		}
	default:
		return Transition{}, false
	}

	t.To = c.Status
	return t, true
}

// Exhaust ends a running session without a winner. Candidates still in
// flight are cancelled and counted as failures.
func (s *Session) Exhaust(now time.Time) ([]*Candidate, error) {
	if s.Status != SessionRunning {
		return nil, fmt.Errorf("session %s: cannot exhaust while %s: %w", s.ID, s.Status, ErrRaceFinished)
	}
	var failures []*CandidateError
	for _, c := range s.Candidates {
		if c.Status == StatusFailed {
			failures = append(failures, &CandidateError{CandidateID: c.ID(), Round: c.Round, Message: c.Error})
		}
	}
	cancelled := s.cancelActive(now)
	for _, c := range cancelled {
		failures = append(failures, &CandidateError{CandidateID: c.ID(), Round: c.Round, Message: deadlineMessage})
	}
	s.finish(SessionExhausted, &ExhaustedError{Rounds: s.Round, Failures: failures}, now)
	return cancelled, nil
}

// Cancel ends a running session at the caller's request.
func (s *Session) Cancel(now time.Time) ([]*Candidate, error) {
	if s.Status != SessionRunning {
		return nil, fmt.Errorf("session %s: cannot cancel while %s: %w", s.ID, s.Status, ErrRaceFinished)
	}
	cancelled := s.cancelActive(now)
	s.finish(SessionCancelled, ErrCancelledByUser, now)
	return cancelled, nil
}

func (s *Session) cancelActive(now time.Time) []*Candidate {
	var cancelled []*Candidate
	for _, c := range s.Candidates {
		if c.Status.IsTerminal() {
			continue
		}
		if c.transition(StatusCancelled, now) == nil {
			cancelled = append(cancelled, c)
		}
	}
	return cancelled
}

func (s *Session) finish(status SessionStatus, err error, now time.Time) {
	s.Status = status
	s.Err = err
	s.EndedAt = now
}

// Candidate returns the candidate with the given ID.
func (s *Session) Candidate(id string) (*Candidate, bool) {
	c, ok := s.index[id]
	return c, ok
}

// Active returns all non-terminal candidates.
func (s *Session) Active() []*Candidate {
	var out []*Candidate
	for _, c := range s.Candidates {
		if !c.Status.IsTerminal() {
			out = append(out, c)
		}
	}
	return out
}

// Elapsed returns time since start, frozen once the session ended.
func (s *Session) Elapsed(now time.Time) time.Duration {
	switch {
	case s.StartedAt.IsZero():
		return 0
	case !s.EndedAt.IsZero():
		return s.EndedAt.Sub(s.StartedAt)
	default:
		return now.Sub(s.StartedAt)
	}
}

// View returns a deep copy of the session for presentation.
func (s *Session) View(now time.Time, est eta.Estimator) View {
	v := View{
		SessionID: s.ID,
		Status:    s.Status,
		Round:     s.Round,
		MaxRounds: s.MaxRounds,
		StartedAt: s.StartedAt,
		Elapsed:   s.Elapsed(now),
	}
	if s.Winner != nil {
		w := *s.Winner
		v.Winner = &w
	}
	var active []int
	v.Candidates = make([]CandidateView, len(s.Candidates))
	for i, c := range s.Candidates {
		v.Candidates[i] = CandidateView{
			Offer:      c.Offer,
			Status:     c.Status,
			Progress:   c.Progress,
			Error:      c.Error,
			Round:      c.Round,
			LaunchedAt: c.LaunchedAt,
			TerminalAt: c.TerminalAt,
		}
		if !c.Status.IsTerminal() {
			active = append(active, c.Progress)
		}
	}
	v.ETA = est.Estimate(v.Elapsed, active, s.Winner != nil)
	return v
}
