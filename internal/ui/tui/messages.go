// Package tui provides a Bubble Tea dashboard for a running race.
package tui

import "github.com/imamik/gpurace/internal/provisioning/race"

// ViewMsg carries a fresh snapshot of the race.
type ViewMsg struct{ View race.View }

// EventMsg carries one observer event.
type EventMsg struct{ Event race.Event }

// DoneMsg signals that the race reached a terminal status.
type DoneMsg struct{ Outcome race.Outcome }

// ErrMsg carries an error.
type ErrMsg struct{ Err error }
