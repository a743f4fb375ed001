package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/imamik/gpurace/internal/provisioning/race"
)

// pollInterval is how often the dashboard re-reads the race view.
const pollInterval = 250 * time.Millisecond

// Feed buffers race events for a dashboard. It implements race.Observer
// and never blocks the race loop: events beyond the buffer are dropped.
type Feed struct {
	ch chan race.Event
}

// NewFeed creates a feed buffering up to size events.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan race.Event, max(size, 1))}
}

// Event implements race.Observer.
func (f *Feed) Event(e race.Event) {
	select {
	case f.ch <- e:
	default:
	}
}

// Interactive reports whether stdout and stdin are terminals.
func Interactive() bool {
	return isTerminal(os.Stdout.Fd()) && isTerminal(os.Stdin.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RunRaceTUI renders r until it ends and returns its outcome. Pressing q
// (or Ctrl-C) cancels the race; cancelling ctx does the same. feed may be
// nil.
func RunRaceTUI(ctx context.Context, r *race.Race, feed *Feed, title string) (race.Outcome, error) {
	m := NewRaceModel(title, r.Cancel)
	m.Race = r.View()

	p := tea.NewProgram(m, tea.WithAltScreen())

	stop := make(chan struct{})
	go func() {
		pump(ctx, r, feed, p.Send, stop)
	}()

	finalModel, err := p.Run()
	close(stop)
	if err != nil {
		r.Cancel()
		return race.Outcome{}, fmt.Errorf("TUI error: %w", err)
	}

	if fm, ok := finalModel.(Model); ok && fm.Err != nil {
		return race.Outcome{}, fm.Err
	}

	// Leaving early still has to wait for the decision; the race was asked
	// to cancel, so this returns promptly.
	return r.Wait(context.WithoutCancel(ctx))
}

// pump forwards views and events to send until the race ends or stop is
// closed.
func pump(ctx context.Context, r *race.Race, feed *Feed, send func(tea.Msg), stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var events <-chan race.Event
	if feed != nil {
		events = feed.ch
	}
	ctxDone := ctx.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctxDone:
			r.Cancel()
			ctxDone = nil
		case e := <-events:
			send(EventMsg{Event: e})
		case <-ticker.C:
			send(ViewMsg{View: r.View()})
		case <-r.Done():
			drain(events, send)
			send(ViewMsg{View: r.View()})
			out, _ := r.Outcome()
			send(DoneMsg{Outcome: out})
			return
		}
	}
}

func drain(events <-chan race.Event, send func(tea.Msg)) {
	if events == nil {
		return
	}
	for {
		select {
		case e := <-events:
			send(EventMsg{Event: e})
		default:
			return
		}
	}
}
