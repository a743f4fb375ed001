package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

const (
	defaultMinBoot       = 5 * time.Second
	defaultMaxBoot       = 40 * time.Second
	defaultTick          = 500 * time.Millisecond
	defaultVerifiedBonus = 0.15
	defaultMaxOdds       = 0.95
)

// failureReasons are the messages a failed simulated candidate reports.
var failureReasons = []string{
	"instance failed to boot",
	"host out of capacity",
	"image pull failed",
	"ssh handshake timed out",
}

// ErrSimulatedFailure is wrapped by every simulated provisioning failure.
var ErrSimulatedFailure = errors.New("simulated failure")

// Outcome forces the result of a specific candidate.
type Outcome int

const (
	// Random draws the outcome from the offer's odds.
	Random Outcome = iota
	// Succeed always connects.
	Succeed
	// Fail always fails.
	Fail
	// Hang never finishes until cancelled.
	Hang
)

// Option configures a Provider.
type Option func(*Provider)

// WithSeed makes the provider deterministic.
func WithSeed(seed uint64) Option {
	return func(p *Provider) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithBootTime sets the range simulated boots take.
func WithBootTime(lo, hi time.Duration) Option {
	return func(p *Provider) {
		p.minBoot, p.maxBoot = lo, max(lo, hi)
	}
}

// WithTick sets the progress reporting interval.
func WithTick(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.tick = d
		}
	}
}

// WithVerifiedBonus sets the success probability added for verified offers.
func WithVerifiedBonus(bonus float64) Option {
	return func(p *Provider) {
		p.verifiedBonus = bonus
	}
}

// WithOutcome forces the outcome for one candidate ID.
func WithOutcome(candidateID string, o Outcome) Option {
	return func(p *Provider) {
		p.forced[candidateID] = o
	}
}

// Provider implements race.Provisioner without touching any cloud.
type Provider struct {
	minBoot       time.Duration
	maxBoot       time.Duration
	tick          time.Duration
	verifiedBonus float64
	forced        map[string]Outcome

	mu       sync.Mutex
	rng      *rand.Rand
	running  map[string]bool
	tornDown []string
}

// New creates a simulated provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		minBoot:       defaultMinBoot,
		maxBoot:       defaultMaxBoot,
		tick:          defaultTick,
		verifiedBonus: defaultVerifiedBonus,
		forced:        make(map[string]Outcome),
		running:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return p
}

// Odds returns the probability that a candidate for o connects.
func (p *Provider) Odds(o offer.Offer) float64 {
	odds := o.Reliability / 100
	if o.Verified {
		odds += p.verifiedBonus
	}
	return min(max(odds, 0), defaultMaxOdds)
}

type plan struct {
	outcome Outcome
	boot    time.Duration
	failAt  time.Duration
	reason  string
}

func (p *Provider) draw(a race.Attempt) plan {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl := plan{outcome: p.forced[a.CandidateID]}
	span := p.maxBoot - p.minBoot
	pl.boot = p.minBoot
	if span > 0 {
		pl.boot += time.Duration(p.rng.Int64N(int64(span) + 1))
	}
	if pl.outcome == Random {
		pl.outcome = Fail
		if p.rng.Float64() < p.Odds(a.Offer) {
			pl.outcome = Succeed
		}
	}
	pl.failAt = time.Duration(float64(pl.boot) * (0.2 + 0.7*p.rng.Float64()))
	pl.reason = failureReasons[p.rng.IntN(len(failureReasons))]
	return pl
}

// Provision implements race.Provisioner.
func (p *Provider) Provision(ctx context.Context, a race.Attempt, report race.ProgressFunc) error {
	pl := p.draw(a)

	p.mu.Lock()
	p.running[a.CandidateID] = true
	p.mu.Unlock()

	var finished <-chan time.Time
	if pl.outcome != Hang {
		end := pl.boot
		if pl.outcome == Fail {
			end = pl.failAt
		}
		timer := time.NewTimer(end)
		defer timer.Stop()
		finished = timer.C
	}

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	start := time.Now()
wait:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-finished:
			break wait
		case <-ticker.C:
			if pl.boot > 0 {
				// stay below 100 until the machine is actually reachable
				report(min(int(time.Since(start)*100/pl.boot), 99))
			}
		}
	}

	if pl.outcome == Fail {
		return fmt.Errorf("%w: %s", ErrSimulatedFailure, pl.reason)
	}
	report(100)
	return nil
}

// Teardown implements race.Provisioner.
func (p *Provider) Teardown(_ context.Context, a race.Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, a.CandidateID)
	p.tornDown = append(p.tornDown, a.CandidateID)
	return nil
}

// Running returns how many simulated machines were provisioned and not yet
// torn down.
func (p *Provider) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// TornDown returns the candidate IDs torn down so far, in order.
func (p *Provider) TornDown() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tornDown...)
}

var _ race.Provisioner = (*Provider)(nil)
