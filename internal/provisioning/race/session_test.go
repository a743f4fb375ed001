package race

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/offer"
)

func testOffer(id string) offer.Offer {
	return offer.Offer{
		ID:          id,
		GPUName:     "RTX4090",
		NumGPUs:     1,
		HourlyPrice: decimal.RequireFromString("0.40"),
		Verified:    true,
		Reliability: 97,
		Location:    "us-east",
	}
}

func offersFor(ids ...string) []offer.Offer {
	out := make([]offer.Offer, len(ids))
	for i, id := range ids {
		out[i] = testOffer(id)
	}
	return out
}

func runningSession(t *testing.T, maxRounds int, ids ...string) (*Session, time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("s1", maxRounds)
	require.NoError(t, s.Start(now))
	_, err := s.Launch(offersFor(ids...), now)
	require.NoError(t, err)
	return s, now
}

func dispatchAll(t *testing.T, s *Session, now time.Time) {
	t.Helper()
	for _, c := range s.Candidates {
		if c.Status == StatusPending {
			_, ok := s.Apply(Dispatched{CandidateID: c.ID()}, now)
			require.True(t, ok)
		}
	}
}

func statusMap(s *Session) map[string]CandidateStatus {
	m := make(map[string]CandidateStatus, len(s.Candidates))
	for _, c := range s.Candidates {
		m[c.ID()] = c.Status
	}
	return m
}

func TestSession_WinnerCancelsSiblings(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 3, "A", "B", "C")
	dispatchAll(t, s, now)
	s.Apply(Progressed{CandidateID: "A", Percent: 40}, now)
	s.Apply(Progressed{CandidateID: "C", Percent: 10}, now)

	at := now.Add(12 * time.Second)
	tr, ok := s.Apply(Connected{CandidateID: "B"}, at)

	require.True(t, ok)
	assert.True(t, tr.Won)
	assert.Equal(t, StatusConnecting, tr.From)
	assert.Equal(t, StatusConnected, tr.To)
	assert.Len(t, tr.Cancelled, 2)
	assert.Equal(t, SessionSucceeded, s.Status)
	require.NotNil(t, s.Winner)
	assert.Equal(t, "B", s.Winner.ID)
	assert.NoError(t, s.Err)
	assert.Equal(t, 12*time.Second, s.Elapsed(at.Add(time.Hour)))
	assert.Equal(t, map[string]CandidateStatus{
		"A": StatusCancelled,
		"B": StatusConnected,
		"C": StatusCancelled,
	}, statusMap(s))

	a, _ := s.Candidate("A")
	assert.Equal(t, 40, a.Progress)
	assert.Empty(t, a.Error)
}

func TestSession_WinnerSetOnce(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 1, "A", "B")
	dispatchAll(t, s, now)

	_, ok := s.Apply(Connected{CandidateID: "A"}, now)
	require.True(t, ok)
	_, ok = s.Apply(Connected{CandidateID: "B"}, now)
	assert.False(t, ok, "late connect is ignored")

	assert.Equal(t, "A", s.Winner.ID)
	b, _ := s.Candidate("B")
	assert.Equal(t, StatusCancelled, b.Status)
}

func TestSession_IgnoresInvalidUpdates(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 1, "A")

	tests := []struct {
		name string
		u    Update
	}{
		{"unknown candidate", Connected{CandidateID: "Z"}},
		{"connect before dispatch", Connected{CandidateID: "A"}},
		{"fail before dispatch", Failed{CandidateID: "A", Err: errors.New("x")}},
		{"progress before dispatch", Progressed{CandidateID: "A", Percent: 10}},
	}
	for _, tt := range tests {
		_, ok := s.Apply(tt.u, now)
		assert.False(t, ok, tt.name)
	}
	a, _ := s.Candidate("A")
	assert.Equal(t, StatusPending, a.Status)
}

func TestSession_FailureRecordsMessage(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 1, "A", "B")
	dispatchAll(t, s, now)

	tr, ok := s.Apply(Failed{CandidateID: "A", Err: errors.New("no capacity")}, now)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, tr.To)
	assert.Equal(t, SessionRunning, s.Status, "a single failure never ends the race")

	_, ok = s.Apply(Failed{CandidateID: "B"}, now)
	require.True(t, ok)
	b, _ := s.Candidate("B")
	assert.Equal(t, "unknown error", b.Error)
	assert.Empty(t, s.Active())
}

func TestSession_ExhaustAggregatesErrors(t *testing.T) {
	t.Parallel()
	s := NewSession("s1", 3)
	now := time.Now()
	require.NoError(t, s.Start(now))

	n := 0
	for round := 1; round <= 3; round++ {
		var ids []string
		for range 5 {
			ids = append(ids, fmt.Sprintf("o%02d", n))
			n++
		}
		_, err := s.Launch(offersFor(ids...), now)
		require.NoError(t, err)
		for _, id := range ids {
			s.Apply(Dispatched{CandidateID: id}, now)
			s.Apply(Failed{CandidateID: id, Err: fmt.Errorf("%s: boot failed", id)}, now)
		}
	}
	_, err := s.Launch(offersFor("extra"), now)
	require.Error(t, err, "round 4 exceeds max rounds")

	cancelled, err := s.Exhaust(now)
	require.NoError(t, err)
	assert.Empty(t, cancelled)
	assert.Equal(t, SessionExhausted, s.Status)

	var exhausted *ExhaustedError
	require.ErrorAs(t, s.Err, &exhausted)
	assert.Equal(t, 3, exhausted.Rounds)
	assert.Len(t, exhausted.Messages(), 15)
	assert.Contains(t, exhausted.Messages()[0], "o00: boot failed")
	assert.True(t, IsExhausted(s.Err))

	var ce *CandidateError
	require.ErrorAs(t, s.Err, &ce)
	assert.Equal(t, "o00", ce.CandidateID)
}

func TestSession_ExhaustCancelsInFlight(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 1, "A", "B", "C")
	dispatchAll(t, s, now)
	s.Apply(Failed{CandidateID: "A", Err: errors.New("boom")}, now)

	cancelled, err := s.Exhaust(now)
	require.NoError(t, err)

	assert.Len(t, cancelled, 2)
	b, _ := s.Candidate("B")
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Empty(t, b.Error, "error is only set on failed candidates")

	var exhausted *ExhaustedError
	require.ErrorAs(t, s.Err, &exhausted)
	assert.Len(t, exhausted.Failures, 3)
	assert.Equal(t, deadlineMessage, exhausted.Failures[2].Message)
}

func TestSession_CancelByUser(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 2, "A", "B")
	_, _ = s.Apply(Dispatched{CandidateID: "A"}, now)

	cancelled, err := s.Cancel(now)
	require.NoError(t, err)
	assert.Len(t, cancelled, 2, "pending and connecting candidates are both cancelled")
	assert.Equal(t, SessionCancelled, s.Status)
	assert.ErrorIs(t, s.Err, ErrCancelledByUser)
	assert.Nil(t, s.Winner)

	_, err = s.Cancel(now)
	assert.ErrorIs(t, err, ErrRaceFinished)
	_, err = s.Exhaust(now)
	assert.ErrorIs(t, err, ErrRaceFinished)

	_, ok := s.Apply(Connected{CandidateID: "A"}, now)
	assert.False(t, ok)
}

func TestSession_CannotCancelAfterWin(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 1, "A")
	dispatchAll(t, s, now)
	s.Apply(Connected{CandidateID: "A"}, now)

	_, err := s.Cancel(now)
	assert.ErrorIs(t, err, ErrRaceFinished)
	assert.Equal(t, SessionSucceeded, s.Status)
}

func TestSession_LaunchGuards(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := NewSession("s1", 2)

	_, err := s.Launch(offersFor("A"), now)
	assert.Error(t, err, "idle sessions cannot launch")

	require.NoError(t, s.Start(now))
	assert.Error(t, s.Start(now))

	_, err = s.Launch(offersFor("A"), now)
	require.NoError(t, err)
	_, err = s.Launch(offersFor("A"), now)
	assert.Error(t, err, "duplicate candidate")
	assert.Equal(t, 1, s.Round)

	launched, err := s.Launch(offersFor("B", "C"), now)
	require.NoError(t, err)
	assert.Equal(t, 2, launched[0].Round)
	assert.Equal(t, 2, s.Round)
}

func TestSession_ViewIsDeepCopy(t *testing.T) {
	t.Parallel()
	s, now := runningSession(t, 3, "A", "B")
	dispatchAll(t, s, now)
	s.Apply(Progressed{CandidateID: "A", Percent: 50}, now)

	v := s.View(now.Add(20*time.Second), eta.Default())

	assert.Equal(t, "s1", v.SessionID)
	assert.Equal(t, SessionRunning, v.Status)
	assert.Equal(t, 1, v.Round)
	assert.Equal(t, 3, v.MaxRounds)
	assert.Equal(t, 20*time.Second, v.Elapsed)
	assert.Equal(t, 2, v.Active())
	assert.Equal(t, 50, v.MaxProgress())
	assert.Equal(t, eta.KindRemaining, v.ETA.Kind)
	assert.Equal(t, 20*time.Second, v.ETA.Remaining)

	v.Candidates[0].Status = StatusConnected
	a, _ := s.Candidate("A")
	assert.Equal(t, StatusConnecting, a.Status)

	s.Apply(Connected{CandidateID: "B"}, now)
	v = s.View(now, eta.Default())
	require.NotNil(t, v.Winner)
	v.Winner.ID = "mutated"
	assert.Equal(t, "B", s.Winner.ID)
	assert.Equal(t, eta.KindDone, v.ETA.Kind)
	assert.Equal(t, 1, v.Count(StatusCancelled))
}

func TestSession_InvariantsUnderRandomUpdates(t *testing.T) {
	t.Parallel()
	ids := []string{"a", "b", "c", "d", "e"}
	updates := func(i int) Update {
		id := ids[i%len(ids)]
		switch (i / len(ids)) % 4 {
		case 0:
			return Dispatched{CandidateID: id}
		case 1:
			return Progressed{CandidateID: id, Percent: (i * 37) % 120}
		case 2:
			if i%3 == 0 {
				return Connected{CandidateID: id}
			}
			return Progressed{CandidateID: id, Percent: i % 100}
		default:
			return Failed{CandidateID: id, Err: errors.New("x")}
		}
	}

	for seed := range 25 {
		s, now := runningSession(t, 1, ids...)
		for i := seed; i < seed+60; i++ {
			s.Apply(updates(i), now)
		}
		connected := 0
		for _, c := range s.Candidates {
			if c.Status == StatusConnected {
				connected++
			}
			if c.Error != "" {
				assert.Equal(t, StatusFailed, c.Status)
			}
			assert.LessOrEqual(t, c.Progress, 100)
		}
		assert.LessOrEqual(t, connected, 1)
		if s.Winner != nil {
			assert.Equal(t, 1, connected)
			w, _ := s.Candidate(s.Winner.ID)
			assert.Equal(t, StatusConnected, w.Status)
			assert.Empty(t, s.Active())
		}
	}
}
