package provisioning

import (
	"fmt"

	"github.com/imamik/gpurace/internal/provisioning/race"
)

// RacePhase races the selected candidates.
type RacePhase struct {
	onStart func(*race.Race)
}

// NewRacePhase creates a race phase. onStart may be nil.
func NewRacePhase(onStart func(*race.Race)) *RacePhase {
	return &RacePhase{onStart: onStart}
}

// Name implements the Phase interface.
func (rp *RacePhase) Name() string {
	return "race"
}

// Provision implements the Phase interface. It returns once the race ended
// and every loser was torn down. The outcome is stored even when the race
// did not produce a winner.
func (rp *RacePhase) Provision(ctx *Context) error {
	if len(ctx.State.Candidates) == 0 {
		return race.ErrNoCandidates
	}

	r, err := ctx.Coordinator().Start(ctx, ctx.State.Candidates)
	if err != nil {
		return fmt.Errorf("failed to start race: %w", err)
	}
	ctx.State.Race = r
	if rp.onStart != nil {
		rp.onStart(r)
	}

	<-r.Done()
	out, _ := r.Outcome()
	ctx.State.Outcome = &out

	if err := r.Close(); err != nil {
		ctx.Logger.Error(err, "some losing candidates may still be running", "session", out.SessionID)
	}
	return out.Err
}
