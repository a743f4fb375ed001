package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/gpurace/internal/provisioning/race"
)

// maxEvents is how many lifecycle events the dashboard keeps on screen.
const maxEvents = 6

type keyMap struct {
	Cancel key.Binding
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel race"),
	),
}

// Model is the Bubble Tea model for the race dashboard.
type Model struct {
	Title string

	// Race is the latest snapshot; Events the most recent lifecycle events.
	Race    race.View
	Events  []race.Event
	Outcome *race.Outcome

	// CancelRequested is set after the first cancel key press. A second
	// press leaves the dashboard without waiting for the race to settle.
	CancelRequested bool

	Spinner spinner.Model

	Width  int
	Height int
	Err    error

	cancel func()
}

// NewRaceModel creates a dashboard model. cancel is invoked when the user
// asks to stop the race.
func NewRaceModel(title string, cancel func()) Model {
	return Model{
		Title: title,
		Spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(activeStyle),
		),
		cancel: cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Cancel) {
			if m.CancelRequested || m.Outcome != nil {
				return m, tea.Quit
			}
			m.CancelRequested = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case ViewMsg:
		m.Race = msg.View

	case EventMsg:
		m.addEvent(msg.Event)

	case DoneMsg:
		out := msg.Outcome
		m.Outcome = &out
		return m, tea.Quit

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) addEvent(e race.Event) {
	// progress ticks are visible in the candidate rows already
	if e.Type == race.EventCandidateProgress {
		return
	}
	m.Events = append(m.Events, e)
	if len(m.Events) > maxEvents {
		m.Events = m.Events[len(m.Events)-maxEvents:]
	}
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
