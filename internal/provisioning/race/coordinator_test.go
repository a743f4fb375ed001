package race

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func statuses(v View) map[string]CandidateStatus {
	m := make(map[string]CandidateStatus, len(v.Candidates))
	for _, c := range v.Candidates {
		m[c.Offer.ID] = c.Status
	}
	return m
}

func progressOf(v View, ids ...string) []int {
	byID := make(map[string]int, len(v.Candidates))
	for _, c := range v.Candidates {
		byID[c.Offer.ID] = c.Progress
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

var _ = Describe("Coordinator", func() {
	const (
		timeout  = 5 * time.Second
		interval = 5 * time.Millisecond
	)

	var (
		fake     *fakeProvisioner
		settings Settings
		events   *eventLog
	)

	BeforeEach(func() {
		fake = newFakeProvisioner()
		settings = Settings{
			BatchSize:       5,
			MaxRounds:       3,
			RoundTimeout:    time.Minute,
			TeardownTimeout: time.Second,
		}
		events = &eventLog{}
	})

	startWith := func(ctx context.Context, ids ...string) *Race {
		c := NewCoordinator(fake, settings, WithObserver(events), WithLogger(GinkgoLogr))
		r, err := c.Start(ctx, offersFor(ids...))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			r.Cancel()
			_ = r.Close()
		})
		return r
	}

	start := func(ids ...string) *Race {
		return startWith(context.Background(), ids...)
	}

	wait := func(r *Race) Outcome {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := r.Wait(ctx)
		Expect(err).NotTo(HaveOccurred(), "race did not finish in time")
		return out
	}

	connecting := func(r *Race) func() int {
		return func() int { return r.View().Count(StatusConnecting) }
	}

	Context("winner declaration", func() {
		It("takes the first connected candidate and cancels the rest", func() {
			gateB := make(chan struct{})
			fake.on("A", &step{progress: []int{40}, gate: make(chan struct{})})
			fake.on("B", &step{progress: []int{25}, gate: gateB})
			fake.on("C", &step{progress: []int{10}, gate: make(chan struct{})})
			r := start("A", "B", "C")

			Eventually(func() []int {
				return progressOf(r.View(), "A", "B", "C")
			}, timeout, interval).Should(Equal([]int{40, 25, 10}))

			By("letting B connect")
			close(gateB)
			out := wait(r)

			Expect(out.Status).To(Equal(SessionSucceeded))
			Expect(out.Succeeded()).To(BeTrue())
			Expect(out.Winner.ID).To(Equal("B"))
			Expect(out.Err).NotTo(HaveOccurred())

			v := r.View()
			Expect(statuses(v)).To(Equal(map[string]CandidateStatus{
				"A": StatusCancelled,
				"B": StatusConnected,
				"C": StatusCancelled,
			}))
			Expect(progressOf(v, "A", "C")).To(Equal([]int{40, 10}))

			By("tearing down only the losers")
			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(ConsistOf("A", "C"))
		})

		It("keeps exactly one winner when several connect at once", func() {
			gate := make(chan struct{})
			ids := []string{"a", "b", "c", "d", "e"}
			for _, id := range ids {
				fake.on(id, &step{gate: gate})
			}
			r := start(ids...)
			Eventually(connecting(r), timeout, interval).Should(Equal(5))

			close(gate)
			out := wait(r)

			Expect(out.Winner).NotTo(BeNil())
			v := r.View()
			Expect(v.Count(StatusConnected)).To(Equal(1))
			Expect(v.Count(StatusCancelled)).To(Equal(4))
			Expect(statuses(v)).To(HaveKeyWithValue(out.Winner.ID, StatusConnected))

			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(HaveLen(4))
			Expect(fake.tornDownIDs()).NotTo(ContainElement(out.Winner.ID))
		})

		It("lets a later round win over an earlier candidate still connecting", func() {
			settings.BatchSize = 1
			settings.RoundTimeout = 50 * time.Millisecond
			fake.on("slow", &step{progress: []int{60}, gate: make(chan struct{})})
			fake.on("fast", &step{progress: []int{30}})
			r := start("slow", "fast")

			out := wait(r)

			Expect(out.Winner.ID).To(Equal("fast"))
			Expect(out.Rounds).To(Equal(2))
			Expect(statuses(r.View())).To(HaveKeyWithValue("slow", StatusCancelled))
		})
	})

	Context("escalation and exhaustion", func() {
		It("exhausts after every candidate in every round fails", func() {
			ids := make([]string, 15)
			for i := range ids {
				ids[i] = fmt.Sprintf("o%02d", i)
				fake.on(ids[i], &step{err: fmt.Errorf("host %d unreachable", i)})
			}
			r := start(ids...)

			out := wait(r)

			Expect(out.Status).To(Equal(SessionExhausted))
			Expect(out.Rounds).To(Equal(3))
			Expect(out.Winner).To(BeNil())
			var exhausted *ExhaustedError
			Expect(errors.As(out.Err, &exhausted)).To(BeTrue())
			Expect(exhausted.Messages()).To(HaveLen(15))
			Expect(r.View().Count(StatusFailed)).To(Equal(15))

			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(HaveLen(15))
		})

		It("adds a batch on round timeout while earlier candidates keep connecting", func() {
			settings.BatchSize = 2
			settings.RoundTimeout = 100 * time.Millisecond
			r := start("a1", "a2", "b1", "b2", "c1", "c2")

			var v View
			Eventually(func() int {
				v = r.View()
				return v.Round
			}, timeout, interval).Should(BeNumerically(">=", 2))
			Expect(v.Active()).To(Equal(2 * v.Round))

			out := wait(r)

			Expect(out.Status).To(Equal(SessionExhausted))
			Expect(out.Rounds).To(Equal(3))
			var exhausted *ExhaustedError
			Expect(errors.As(out.Err, &exhausted)).To(BeTrue())
			Expect(exhausted.Failures).To(HaveLen(6))
			for _, f := range exhausted.Failures {
				Expect(f.Message).To(ContainSubstring("race deadline reached"))
			}

			final := r.View()
			Expect(final.Count(StatusCancelled)).To(Equal(6))
			for _, c := range final.Candidates {
				Expect(c.Error).To(BeEmpty())
			}
		})

		It("never launches more than rounds times batch candidates", func() {
			ids := make([]string, 20)
			for i := range ids {
				ids[i] = fmt.Sprintf("o%02d", i)
				fake.on(ids[i], &step{err: errors.New("boom")})
			}
			r := start(ids...)

			out := wait(r)

			Expect(out.Rounds).To(Equal(3))
			Expect(r.View().Candidates).To(HaveLen(15))
			Expect(fake.startedIDs()).To(HaveLen(15))
		})

		It("exhausts early once the last remaining candidate fails", func() {
			fake.on("only", &step{err: errors.New("boom")})
			r := start("only")

			out := wait(r)

			Expect(out.Status).To(Equal(SessionExhausted))
			Expect(out.Rounds).To(Equal(1))
			Expect(r.View().MaxRounds).To(Equal(3))
		})

		It("keeps a single batch connecting for every configured round", func() {
			settings.RoundTimeout = 100 * time.Millisecond
			gate := make(chan struct{})
			fake.on("c", &step{progress: []int{50}, gate: gate})
			time.AfterFunc(150*time.Millisecond, func() { close(gate) })
			r := start("a", "b", "c", "d", "e")

			Expect(r.View().MaxRounds).To(Equal(3))
			out := wait(r)

			Expect(out.Status).To(Equal(SessionSucceeded))
			Expect(out.Winner.ID).To(Equal("c"))
			Expect(out.Rounds).To(Equal(2))
			Expect(r.View().Candidates).To(HaveLen(5))
			Expect(fake.startedIDs()).To(HaveLen(5))
		})

		It("exhausts a single batch only after every configured round timed out", func() {
			settings.RoundTimeout = 50 * time.Millisecond
			r := start("a", "b")

			out := wait(r)

			Expect(out.Status).To(Equal(SessionExhausted))
			Expect(out.Rounds).To(Equal(3))
			Expect(out.Elapsed).To(BeNumerically(">=", 150*time.Millisecond))
			Expect(r.View().Count(StatusCancelled)).To(Equal(2))
		})
	})

	Context("cancellation", func() {
		It("cancels every active candidate when the caller asks", func() {
			r := start("a", "b")
			Eventually(connecting(r), timeout, interval).Should(Equal(2))

			r.Cancel()
			out := wait(r)

			Expect(out.Status).To(Equal(SessionCancelled))
			Expect(out.Err).To(MatchError(ErrCancelledByUser))
			Expect(r.View().Count(StatusCancelled)).To(Equal(2))

			r.Cancel()
			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(ConsistOf("a", "b"))
		})

		It("treats a cancelled parent context as a user cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			r := startWith(ctx, "a")
			Eventually(connecting(r), timeout, interval).Should(Equal(1))

			cancel()
			out := wait(r)

			Expect(out.Status).To(Equal(SessionCancelled))
			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(ConsistOf("a"))
		})

		It("does not tear down candidates that were never dispatched", func() {
			settings.LaunchRate = 0.001
			settings.LaunchBurst = 1
			ids := []string{"first", "second", "third"}
			for _, id := range ids {
				fake.on(id, &step{})
			}
			r := start(ids...)

			out := wait(r)

			// Only one launch token is available, so exactly one candidate
			// ever reaches the provider.
			Expect(out.Winner).NotTo(BeNil())
			v := r.View()
			Expect(v.Count(StatusConnected)).To(Equal(1))
			Expect(v.Count(StatusCancelled)).To(Equal(2))
			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(BeEmpty())
			Expect(fake.startedIDs()).To(ConsistOf(out.Winner.ID))
		})
	})

	Context("reporting", func() {
		It("emits lifecycle events in order", func() {
			fake.on("a", &step{progress: []int{50}})
			r := start("a")
			wait(r)
			Expect(r.Close()).To(Succeed())

			types := events.types()
			Expect(types[0]).To(Equal(EventRaceStarted))
			Expect(types[1]).To(Equal(EventRoundLaunched))
			Expect(types).To(ContainElements(EventCandidateConnecting, EventCandidateProgress, EventCandidateConnected))
			Expect(types[len(types)-1]).To(Equal(EventRaceSucceeded))
		})

		It("surfaces teardown failures from Close", func() {
			fake.teardownErr = errors.New("api down")
			fake.on("w", &step{})
			r := start("w", "l")

			out := wait(r)
			Expect(out.Winner.ID).To(Equal("w"))

			err := r.Close()
			Expect(err).To(MatchError(ContainSubstring("api down")))
			Expect(events.types()).To(ContainElement(EventTeardownFailed))
		})

		It("warns when a loser's provisioning call outlives the teardown timeout", func() {
			settings.TeardownTimeout = 50 * time.Millisecond
			gateW := make(chan struct{})
			gateL := make(chan struct{})
			fake.on("w", &step{gate: gateW})
			fake.on("l", &step{gate: gateL, stuck: true})
			r := start("w", "l")
			DeferCleanup(func() { close(gateL) })
			Eventually(connecting(r), timeout, interval).Should(Equal(2))

			close(gateW)
			out := wait(r)
			Expect(out.Winner.ID).To(Equal("w"))

			Expect(r.Close()).To(Succeed())
			Expect(fake.tornDownIDs()).To(ConsistOf("l"))
			Expect(events.types()).To(ContainElement(EventTeardownUnconfirmed))
			Expect(events.types()).NotTo(ContainElement(EventTeardownFailed))
		})

		It("reports outcomes through Run", func() {
			fake.on("a", &step{})
			c := NewCoordinator(fake, settings)

			out, err := c.Run(context.Background(), offersFor("a", "b"))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Winner.ID).To(Equal("a"))
			Expect(fake.tornDownIDs()).To(ConsistOf("b"))
		})

		It("rejects an empty candidate list", func() {
			_, err := NewCoordinator(fake, settings).Start(context.Background(), nil)
			Expect(err).To(MatchError(ErrNoCandidates))
		})
	})
})
