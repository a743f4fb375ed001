package provisioning

import (
	"fmt"
	"time"

	"github.com/imamik/gpurace/internal/provisioning/race"
)

// RunPhases executes all phases sequentially.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	log := ctx.Logger
	log.V(1).Info("starting pipeline", "phases", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		log.V(1).Info("phase starting", "phase", name)

		if err := phase.Provision(ctx); err != nil {
			log.V(1).Info("phase failed", "phase", name, "error", err.Error())
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		log.V(1).Info("phase completed", "phase", name, "took", time.Since(phaseStart).Round(time.Millisecond))
	}

	log.V(1).Info("pipeline completed", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// PlanPhases validates the intent and selects candidates without
// provisioning anything.
func PlanPhases() []Phase {
	return []Phase{NewValidationPhase(), NewSelectionPhase()}
}

// RacePhases is the full pipeline. onStart, if set, receives the live race
// handle as soon as the first round launched.
func RacePhases(onStart func(*race.Race)) []Phase {
	return append(PlanPhases(), NewRacePhase(onStart))
}
