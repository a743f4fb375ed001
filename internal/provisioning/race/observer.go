package race

import (
	"time"

	"github.com/go-logr/logr"
)

// EventType represents the type of race event.
type EventType string

const (
	// EventRaceStarted indicates the first round is about to launch.
	EventRaceStarted EventType = "race.started"
	// EventRoundLaunched indicates a batch of candidates was launched.
	EventRoundLaunched EventType = "round.launched"

	EventCandidateConnecting EventType = "candidate.connecting"
	EventCandidateProgress   EventType = "candidate.progress"
	EventCandidateConnected  EventType = "candidate.connected"
	EventCandidateFailed     EventType = "candidate.failed"
	EventCandidateCancelled  EventType = "candidate.cancelled"

	EventRaceSucceeded EventType = "race.succeeded"
	EventRaceExhausted EventType = "race.exhausted"
	EventRaceCancelled EventType = "race.cancelled"

	// EventTeardownFailed indicates a loser could not be torn down and may
	// still be billing.
	EventTeardownFailed EventType = "teardown.failed"
	// EventTeardownUnconfirmed indicates a loser was torn down while its
	// provisioning call had not returned. The call may still create
	// resources afterwards.
	EventTeardownUnconfirmed EventType = "teardown.unconfirmed"
)

// Event is a structured race event.
type Event struct {
	Type        EventType
	SessionID   string
	Round       int
	CandidateID string
	Progress    int
	Message     string
	Timestamp   time.Time
}

// Observer receives race events. Calls come from the race's event loop and
// must not block for long.
type Observer interface {
	Event(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Event implements Observer.
func (f ObserverFunc) Event(e Event) { f(e) }

type multiObserver []Observer

func (m multiObserver) Event(e Event) {
	for _, o := range m {
		o.Event(e)
	}
}

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// LogObserver writes events to a logr.Logger. Lifecycle events log at V(0),
// candidate transitions at V(1) and progress at V(2).
type LogObserver struct {
	log logr.Logger
}

// NewLogObserver creates an observer backed by log.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{log: log}
}

// Event implements Observer.
func (o *LogObserver) Event(e Event) {
	kv := []any{"session", e.SessionID}
	if e.Round > 0 {
		kv = append(kv, "round", e.Round)
	}
	if e.CandidateID != "" {
		kv = append(kv, "candidate", e.CandidateID)
	}

	switch e.Type {
	case EventCandidateProgress:
		o.log.V(2).Info(e.Message, append(kv, "progress", e.Progress)...)
	case EventCandidateConnecting, EventCandidateFailed, EventCandidateCancelled:
		o.log.V(1).Info(e.Message, append(kv, "event", string(e.Type))...)
	case EventTeardownFailed, EventTeardownUnconfirmed:
		o.log.Error(nil, e.Message, kv...)
	default:
		o.log.Info(e.Message, append(kv, "event", string(e.Type))...)
	}
}
