package provisioning

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes.
type State struct {
	// Validation results
	Offers     []offer.Offer
	Violations []Violation

	// Selection results
	Target      offer.Offer
	Recommended bool // target came from the tier recommendation
	Breakdown   offer.Breakdown
	Candidates  []offer.Offer

	// Race results
	Race    *race.Race
	Outcome *race.Outcome
}

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Intent      *config.Intent
	Settings    *config.Settings
	Catalog     offer.Catalog
	Provisioner race.Provisioner
	Logger      logr.Logger
	Observer    race.Observer
	Metrics     *race.Metrics
	State       *State
}

// NewContext creates a new provisioning context with settings loaded from
// the environment.
func NewContext(
	ctx context.Context,
	intent *config.Intent,
	catalog offer.Catalog,
	provisioner race.Provisioner,
) *Context {
	return &Context{
		Context:     ctx,
		Intent:      intent,
		Settings:    config.LoadSettings(),
		Catalog:     catalog,
		Provisioner: provisioner,
		Logger:      logr.Discard(),
		State:       &State{},
	}
}

// Coordinator builds a race coordinator from the context's settings and
// reporting sinks.
func (c *Context) Coordinator() *race.Coordinator {
	return race.NewCoordinator(c.Provisioner, RaceSettings(c.Settings),
		race.WithLogger(c.Logger.WithName("race")),
		race.WithObserver(c.Observer),
		race.WithMetrics(c.Metrics),
	)
}

// RaceSettings maps engine settings onto race bounds.
func RaceSettings(s *config.Settings) race.Settings {
	return race.Settings{
		BatchSize:       s.BatchSize,
		MaxRounds:       s.MaxRounds,
		RoundTimeout:    s.RoundTimeout,
		TeardownTimeout: s.TeardownTimeout,
		LaunchRate:      s.LaunchRate,
		LaunchBurst:     s.LaunchBurst,
	}
}

// SelectionPolicy maps engine settings onto candidate set bounds. The
// upper bound never exceeds what the race can launch in its rounds.
func SelectionPolicy(s *config.Settings) offer.Policy {
	p := offer.Policy{MinSize: s.MinRaceSize, MaxSize: s.MaxRaceSize}
	if s.BatchSize > 0 && s.MaxRounds > 0 {
		capacity := s.BatchSize * s.MaxRounds
		p.MaxSize = min(p.MaxSize, capacity)
		p.MinSize = min(p.MinSize, capacity)
	}
	return p
}
