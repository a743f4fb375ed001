package race

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for races. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	racesTotal         *prometheus.CounterVec
	raceDuration       prometheus.Histogram
	candidatesLaunched prometheus.Counter
	candidateResults   *prometheus.CounterVec
	roundsUsed         prometheus.Histogram
	timeToWinner       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		racesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpurace_race_total",
				Help: "Total number of finished races by result",
			},
			[]string{"result"},
		),
		raceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gpurace_race_duration_seconds",
				Help:    "Wall-clock duration of races from start to terminal status",
				Buckets: []float64{5, 15, 30, 60, 90, 180, 270, 600},
			},
		),
		candidatesLaunched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gpurace_candidates_launched_total",
				Help: "Total number of candidates launched across all races",
			},
		),
		candidateResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpurace_candidate_results_total",
				Help: "Total number of candidates reaching a terminal status",
			},
			[]string{"status"},
		),
		roundsUsed: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gpurace_rounds_used",
				Help:    "Number of rounds a race launched before ending",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		timeToWinner: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gpurace_time_to_winner_seconds",
				Help:    "Time from race start until the winning candidate connected",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.racesTotal,
			m.raceDuration,
			m.candidatesLaunched,
			m.candidateResults,
			m.roundsUsed,
			m.timeToWinner,
		)
	}
	return m
}

func (m *Metrics) recordLaunch(n int) {
	if m == nil {
		return
	}
	m.candidatesLaunched.Add(float64(n))
}

func (m *Metrics) recordCandidate(status CandidateStatus) {
	if m == nil {
		return
	}
	m.candidateResults.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) recordRace(status SessionStatus, duration time.Duration, rounds int) {
	if m == nil {
		return
	}
	m.racesTotal.WithLabelValues(string(status)).Inc()
	m.raceDuration.Observe(duration.Seconds())
	m.roundsUsed.Observe(float64(rounds))
	if status == SessionSucceeded {
		m.timeToWinner.Observe(duration.Seconds())
	}
}
