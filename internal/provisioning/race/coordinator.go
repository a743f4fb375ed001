package race

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/util/async"
)

// ProgressFunc reports provisioning progress in percent.
type ProgressFunc func(percent int)

// Attempt identifies one provisioning call.
type Attempt struct {
	SessionID   string
	CandidateID string
	Round       int
	Offer       offer.Offer
}

// Provisioner provisions and tears down instances for offers.
type Provisioner interface {
	// Provision blocks until the instance is usable (nil error) or has
	// failed. It must return promptly once ctx is cancelled.
	Provision(ctx context.Context, a Attempt, report ProgressFunc) error
	// Teardown releases whatever Provision created. It is called for every
	// dispatched candidate except the winner.
	Teardown(ctx context.Context, a Attempt) error
}

// Settings bound a race.
type Settings struct {
	BatchSize       int
	MaxRounds       int
	RoundTimeout    time.Duration
	TeardownTimeout time.Duration
	// LaunchRate caps provisioning calls per second across the race.
	// Zero means unlimited.
	LaunchRate  float64
	LaunchBurst int
}

// DefaultSettings returns three rounds of five with a 90s round timeout.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:       5,
		MaxRounds:       3,
		RoundTimeout:    90 * time.Second,
		TeardownTimeout: 2 * time.Minute,
		LaunchBurst:     5,
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.BatchSize < 1 {
		s.BatchSize = d.BatchSize
	}
	if s.MaxRounds < 1 {
		s.MaxRounds = d.MaxRounds
	}
	if s.RoundTimeout <= 0 {
		s.RoundTimeout = d.RoundTimeout
	}
	if s.TeardownTimeout <= 0 {
		s.TeardownTimeout = d.TeardownTimeout
	}
	if s.LaunchBurst < 1 {
		s.LaunchBurst = 1
	}
	return s
}

// Outcome is the terminal result of a race.
type Outcome struct {
	SessionID string
	Status    SessionStatus
	// Winner is set only when Status is SessionSucceeded.
	Winner  *offer.Offer
	Rounds  int
	Elapsed time.Duration
	// Err is an *ExhaustedError, ErrCancelledByUser, or nil on success.
	Err error
}

// Succeeded reports whether the race produced a winner.
func (o Outcome) Succeeded() bool {
	return o.Status == SessionSucceeded && o.Winner != nil
}

// Coordinator starts races against a Provisioner.
type Coordinator struct {
	provisioner Provisioner
	settings    Settings
	log         logr.Logger
	observer    Observer
	metrics     *Metrics
	estimator   eta.Estimator
	now         func() time.Time
	newID       func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for race lifecycle messages.
func WithLogger(log logr.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithEstimator overrides the ETA guards used in views.
func WithEstimator(e eta.Estimator) Option {
	return func(c *Coordinator) {
		c.estimator = e
	}
}

// WithClock overrides the timestamp source. Round timers always use
// wall-clock time.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithIDGenerator overrides how session IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		c.newID = gen
	}
}

// NewCoordinator creates a coordinator.
func NewCoordinator(p Provisioner, s Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		provisioner: p,
		settings:    s.normalized(),
		log:         logr.Discard(),
		estimator:   eta.Default(),
		now:         time.Now,
		newID:       func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the normalized settings.
func (c *Coordinator) Settings() Settings {
	return c.settings
}

// Run starts a race, waits for its outcome and for loser teardown, and
// returns the outcome together with its terminal error.
func (c *Coordinator) Run(ctx context.Context, candidates []offer.Offer) (Outcome, error) {
	r, err := c.Start(ctx, candidates)
	if err != nil {
		return Outcome{}, err
	}
	<-r.Done()
	out, _ := r.Outcome()
	if err := r.Close(); err != nil {
		c.log.Error(err, "teardown incomplete", "session", out.SessionID)
	}
	return out, out.Err
}

// Start launches round one and returns a handle to the running race.
// Cancelling ctx cancels the race as if the caller asked for it; teardown
// still runs to completion.
func (c *Coordinator) Start(ctx context.Context, candidates []offer.Offer) (*Race, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	s := c.settings

	pool := slices.Clone(candidates)
	if limit := s.BatchSize * s.MaxRounds; len(pool) > limit {
		c.log.Info("dropping candidates beyond round capacity", "candidates", len(pool), "capacity", limit, "dropped", len(pool)-limit)
		pool = pool[:limit]
	}
	rounds := s.MaxRounds

	base := context.WithoutCancel(ctx)
	runCtx, stopRun := context.WithCancel(base)
	r := &Race{
		c:        c,
		session:  NewSession(c.newID(), rounds),
		pool:     pool,
		updates:  make(chan Update, 64),
		cancelCh: make(chan struct{}),
		stopped:  make(chan struct{}),
		closed:   make(chan struct{}),
		base:     base,
		runCtx:   runCtx,
		stopRun:  stopRun,
	}
	if s.LaunchRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(s.LaunchRate), s.LaunchBurst)
	}

	now := c.now()
	if err := r.session.Start(now); err != nil {
		stopRun()
		return nil, err
	}
	c.log.Info("race started", "session", r.session.ID, "candidates", len(pool), "rounds", rounds)

	timer := time.NewTimer(s.RoundTimeout)
	r.mu.Lock()
	events := []Event{r.event(EventRaceStarted, nil, fmt.Sprintf("racing %d candidate(s) over up to %d round(s)", len(pool), rounds))}
	events = append(events, r.advanceLocked(now, timer)...)
	r.mu.Unlock()
	r.emit(events)

	go r.loop(ctx, timer)
	return r, nil
}

// Race is a handle to one running race.
type Race struct {
	c *Coordinator

	mu      sync.RWMutex
	session *Session

	pool    []offer.Offer
	next    int
	limiter *rate.Limiter
	// attempts is appended by the event loop and read by teardown after the
	// loop has exited.
	attempts []*attempt

	updates    chan Update
	cancelCh   chan struct{}
	cancelOnce sync.Once
	stopped    chan struct{}
	closed     chan struct{}

	base    context.Context
	runCtx  context.Context
	stopRun context.CancelFunc

	outcome     Outcome
	teardownErr error
}

type attempt struct {
	Attempt
	cancel     context.CancelFunc
	done       chan struct{}
	dispatched atomic.Bool
}

// ID returns the session ID.
func (r *Race) ID() string {
	return r.session.ID
}

// View returns a deep copy of the current race state.
func (r *Race) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session.View(r.c.now(), r.c.estimator)
}

// Cancel asks the race to stop. It has no effect once the race ended.
func (r *Race) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

// Done is closed once the race reached a terminal status.
func (r *Race) Done() <-chan struct{} {
	return r.stopped
}

// Outcome returns the terminal outcome, if the race has ended.
func (r *Race) Outcome() (Outcome, bool) {
	select {
	case <-r.stopped:
		return r.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the race ends or ctx is done.
func (r *Race) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.stopped:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Close waits for the race to end and for every loser to be torn down. It
// returns the joined teardown errors.
func (r *Race) Close() error {
	<-r.closed
	return r.teardownErr
}

func (r *Race) loop(parent context.Context, timer *time.Timer) {
	defer timer.Stop()

	for !r.session.Status.IsTerminal() {
		select {
		case u := <-r.updates:
			r.handle(u, timer)
		case <-timer.C:
			r.roundTimedOut(timer)
		case <-r.cancelCh:
			r.cancel()
		case <-parent.Done():
			r.cancel()
		}
	}

	r.finish()
	go r.teardown()
}

func (r *Race) handle(u Update, timer *time.Timer) {
	now := r.c.now()
	r.mu.Lock()
	t, ok := r.session.Apply(u, now)
	if !ok {
		r.mu.Unlock()
		return
	}
	events := r.transitionEvents(t)
	if t.To == StatusFailed && len(r.session.Active()) == 0 {
		r.c.log.V(1).Info("all active candidates failed, escalating early", "session", r.session.ID, "round", r.session.Round)
		events = append(events, r.advanceLocked(now, timer)...)
	}
	r.mu.Unlock()
	r.emit(events)
}

func (r *Race) roundTimedOut(timer *time.Timer) {
	now := r.c.now()
	r.mu.Lock()
	r.c.log.V(1).Info("round timed out", "session", r.session.ID, "round", r.session.Round)
	events := r.advanceLocked(now, timer)
	r.mu.Unlock()
	r.emit(events)
}

// advanceLocked opens the next round, or exhausts the race when no round
// is left. A round opens without new candidates once the pool is used up,
// as long as earlier candidates are still connecting.
func (r *Race) advanceLocked(now time.Time, timer *time.Timer) []Event {
	end := min(r.next+r.c.settings.BatchSize, len(r.pool))
	if r.session.Round < r.session.MaxRounds && (r.next < end || len(r.session.Active()) > 0) {
		launched, err := r.session.Launch(r.pool[r.next:end], now)
		if err == nil {
			r.next = end
			for _, cand := range launched {
				r.dispatch(cand)
			}
			resetTimer(timer, r.c.settings.RoundTimeout)
			if len(launched) == 0 {
				return []Event{r.event(EventRoundLaunched, nil,
					fmt.Sprintf("round %d/%d: no offers left, waiting on %d candidate(s)", r.session.Round, r.session.MaxRounds, len(r.session.Active())))}
			}
			r.c.metrics.recordLaunch(len(launched))
			return []Event{r.event(EventRoundLaunched, nil,
				fmt.Sprintf("round %d/%d: launched %d candidate(s)", r.session.Round, r.session.MaxRounds, len(launched)))}
		}
		r.c.log.Error(err, "launch failed", "session", r.session.ID)
	}

	cancelled, err := r.session.Exhaust(now)
	if err != nil {
		return nil
	}
	events := make([]Event, 0, len(cancelled))
	for _, cand := range cancelled {
		r.c.metrics.recordCandidate(StatusCancelled)
		events = append(events, r.event(EventCandidateCancelled, cand, deadlineMessage))
	}
	return events
}

func (r *Race) cancel() {
	now := r.c.now()
	r.mu.Lock()
	cancelled, err := r.session.Cancel(now)
	r.mu.Unlock()
	if err != nil {
		return
	}
	events := make([]Event, 0, len(cancelled))
	for _, cand := range cancelled {
		r.c.metrics.recordCandidate(StatusCancelled)
		events = append(events, r.event(EventCandidateCancelled, cand, "cancelled by user"))
	}
	r.emit(events)
}

func (r *Race) transitionEvents(t Transition) []Event {
	cand := t.Candidate
	if t.From == t.To {
		return []Event{r.event(EventCandidateProgress, cand, "progress")}
	}

	var events []Event
	switch t.To {
	case StatusConnecting:
		events = append(events, r.event(EventCandidateConnecting, cand,
			fmt.Sprintf("provisioning %dx %s in %s", cand.Offer.NumGPUs, cand.Offer.GPUName, cand.Offer.Location)))
	case StatusConnected:
		r.c.metrics.recordCandidate(StatusConnected)
		events = append(events, r.event(EventCandidateConnected, cand, "connected"))
		for _, loser := range t.Cancelled {
			r.c.metrics.recordCandidate(StatusCancelled)
			events = append(events, r.event(EventCandidateCancelled, loser, "lost to "+cand.ID()))
		}
	case StatusFailed:
		r.c.metrics.recordCandidate(StatusFailed)
		events = append(events, r.event(EventCandidateFailed, cand, cand.Error))
	}
	return events
}

func (r *Race) dispatch(cand *Candidate) {
	ctx, cancel := context.WithCancel(r.runCtx)
	a := &attempt{
		Attempt: Attempt{
			SessionID:   r.session.ID,
			CandidateID: cand.ID(),
			Round:       cand.Round,
			Offer:       cand.Offer,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.attempts = append(r.attempts, a)
	go r.provision(ctx, a)
}

func (r *Race) provision(ctx context.Context, a *attempt) {
	defer close(a.done)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
	}
	if ctx.Err() != nil || !r.send(Dispatched{CandidateID: a.CandidateID}) {
		return
	}
	a.dispatched.Store(true)

	err := r.c.provisioner.Provision(ctx, a.Attempt, func(pct int) {
		r.send(Progressed{CandidateID: a.CandidateID, Percent: pct})
	})
	if err != nil {
		if ctx.Err() == nil {
			r.send(Failed{CandidateID: a.CandidateID, Err: err})
		}
		return
	}
	r.send(Connected{CandidateID: a.CandidateID})
}

// send delivers an update to the event loop, or drops it once the race has
// ended.
func (r *Race) send(u Update) bool {
	select {
	case r.updates <- u:
		return true
	case <-r.stopped:
		return false
	}
}

func (r *Race) finish() {
	now := r.c.now()
	r.mu.RLock()
	s := r.session
	out := Outcome{
		SessionID: s.ID,
		Status:    s.Status,
		Rounds:    s.Round,
		Elapsed:   s.Elapsed(now),
		Err:       s.Err,
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	r.mu.RUnlock()

	r.outcome = out
	close(r.stopped)
	r.stopRun()

	r.c.metrics.recordRace(out.Status, out.Elapsed, out.Rounds)

	log := r.c.log.WithValues("session", out.SessionID, "rounds", out.Rounds, "elapsed", out.Elapsed.Round(time.Millisecond))
	switch out.Status {
	case SessionSucceeded:
		log.Info("race won", "winner", out.Winner.ID)
		r.emit([]Event{r.event(EventRaceSucceeded, nil, fmt.Sprintf("winner %s after %s", out.Winner.ID, eta.FormatDuration(out.Elapsed)))})
	case SessionExhausted:
		var exhausted *ExhaustedError
		if errors.As(out.Err, &exhausted) {
			log = log.WithValues("failures", len(exhausted.Failures))
		}
		log.Info("race exhausted")
		r.emit([]Event{r.event(EventRaceExhausted, nil, fmt.Sprintf("no winner after %d round(s)", out.Rounds))})
	case SessionCancelled:
		log.Info("race cancelled by user")
		r.emit([]Event{r.event(EventRaceCancelled, nil, ErrCancelledByUser.Error())})
	}
}

func (r *Race) teardown() {
	defer close(r.closed)

	var winnerID string
	if r.outcome.Winner != nil {
		winnerID = r.outcome.Winner.ID
	}
	timeout := r.c.settings.TeardownTimeout

	var tasks []async.Task
	for _, a := range r.attempts {
		if a.CandidateID == winnerID {
			a.cancel()
			continue
		}
		tasks = append(tasks, async.Task{
			Name: "teardown " + a.CandidateID,
			Func: func(ctx context.Context) error {
				defer a.cancel()
				select {
				case <-a.done:
				case <-time.After(timeout):
					r.emit([]Event{r.unconfirmed(a)})
				}
				if !a.dispatched.Load() {
					return nil
				}
				tctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return r.c.provisioner.Teardown(tctx, a.Attempt)
			},
		})
	}
	if len(tasks) == 0 {
		return
	}

	start := time.Now()
	err := async.RunParallel(r.base, tasks)
	if err != nil {
		r.teardownErr = err
		r.c.log.Error(err, "teardown incomplete", "session", r.outcome.SessionID)
		r.emit([]Event{r.event(EventTeardownFailed, nil, err.Error())})
		return
	}
	r.c.log.V(1).Info("losers torn down", "session", r.outcome.SessionID, "count", len(tasks), "took", time.Since(start).Round(time.Millisecond))
}

// unconfirmed reports a loser whose provisioning call outlived the
// teardown timeout.
func (r *Race) unconfirmed(a *attempt) Event {
	e := r.event(EventTeardownUnconfirmed, nil, fmt.Sprintf(
		"provisioning still running after %s, tearing down anyway; run `gpurace cleanup --session %s` if it lingers",
		r.c.settings.TeardownTimeout, a.SessionID))
	e.CandidateID = a.CandidateID
	e.Round = a.Round
	return e
}

func (r *Race) event(typ EventType, cand *Candidate, msg string) Event {
	e := Event{
		Type:      typ,
		SessionID: r.session.ID,
		Round:     r.session.Round,
		Message:   msg,
		Timestamp: r.c.now(),
	}
	if cand != nil {
		e.CandidateID = cand.ID()
		e.Round = cand.Round
		e.Progress = cand.Progress
	}
	return e
}

func (r *Race) emit(events []Event) {
	if r.c.observer == nil {
		return
	}
	for _, e := range events {
		r.c.observer.Event(e)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
