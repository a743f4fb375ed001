package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderCandidates(&b, m)

	if len(m.Events) > 0 {
		renderEvents(&b, m)
	}

	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := "gpurace"
	if m.Title != "" {
		title += ": " + m.Title
	}
	if m.Race.SessionID != "" {
		title += fmt.Sprintf(" (session %s)", m.Race.SessionID)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(" ")
	b.WriteString(statusLine(m))
	b.WriteString("\n")
}

func statusLine(m Model) string {
	if m.Err != nil {
		return failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	}
	status := m.Race.Status
	if m.Outcome != nil {
		status = m.Outcome.Status
	}
	switch status {
	case race.SessionSucceeded:
		winner := ""
		if m.Outcome != nil && m.Outcome.Winner != nil {
			winner = m.Outcome.Winner.ID
		} else if m.Race.Winner != nil {
			winner = m.Race.Winner.ID
		}
		return readyStyle.Render("Connected to " + winner)
	case race.SessionExhausted:
		return failedStyle.Render("Exhausted")
	case race.SessionCancelled:
		return warningStyle.Render("Cancelled")
	case race.SessionRunning:
		if m.CancelRequested {
			return m.Spinner.View() + " " + warningStyle.Render("Cancelling...")
		}
		return m.Spinner.View() + " " + activeStyle.Render("Racing")
	default:
		return dimStyle.Render("Starting...")
	}
}

func renderProgressBar(b *strings.Builder, m Model) {
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}

	pct := m.Race.MaxProgress()
	if m.Race.Status == race.SessionSucceeded {
		pct = 100
	}
	filled := min(barWidth*pct/100, barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	round := ""
	if m.Race.MaxRounds > 0 {
		round = fmt.Sprintf("  round %d/%d", m.Race.Round, m.Race.MaxRounds)
	}
	estimate := ""
	if m.Race.Status == race.SessionRunning && m.Race.ETA.Kind != "" {
		estimate = "  " + m.Race.ETA.String()
	}

	fmt.Fprintf(b, "  %s %3d%%%s%s\n", bar, pct, round, estimate)
}

func renderCandidates(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render(fmt.Sprintf("  Candidates (%d active)", m.Race.Active())))
	b.WriteString("\n")

	if len(m.Race.Candidates) == 0 {
		fmt.Fprintf(b, "    %s\n", dimStyle.Render("waiting for the first round"))
		return
	}

	for _, c := range m.Race.Candidates {
		icon, style := candidateIcon(m, c.Status)
		gpu := fmt.Sprintf("%dx %s", c.Offer.NumGPUs, c.Offer.GPUName)
		price := "$" + c.Offer.HourlyPrice.StringFixed(2) + "/h"

		extra := ""
		switch c.Status {
		case race.StatusConnecting:
			extra = miniBar(c.Progress) + fmt.Sprintf(" %3d%%", c.Progress)
		case race.StatusFailed:
			extra = failedStyle.Render(truncate(c.Error, 48))
		case race.StatusConnected:
			extra = readyStyle.Render("connected")
		default:
			extra = dimStyle.Render(string(c.Status))
		}

		fmt.Fprintf(b, "    %s %-22s %-24s %-10s %s %s\n",
			style(icon), style(truncate(c.Offer.ID, 22)), truncate(gpu, 24), dimStyle.Render(price),
			dimStyle.Render(fmt.Sprintf("r%d", c.Round)), extra)
	}
}

func renderEvents(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Recent Events"))
	b.WriteString("\n")

	for _, e := range m.Events {
		style := dimStyle
		switch e.Type {
		case race.EventCandidateFailed, race.EventRaceExhausted, race.EventTeardownFailed:
			style = failedStyle
		case race.EventCandidateConnected, race.EventRaceSucceeded:
			style = readyStyle
		case race.EventRaceCancelled, race.EventTeardownUnconfirmed:
			style = warningStyle
		}
		line := e.Message
		if e.CandidateID != "" {
			line = fmt.Sprintf("[%s] %s", e.CandidateID, e.Message)
		}
		fmt.Fprintf(b, "    %s %s\n", dimStyle.Render(e.Timestamp.Format("15:04:05")), style.Render(line))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	parts := []string{"elapsed: " + eta.FormatDuration(m.Race.Elapsed)}
	switch {
	case m.Outcome != nil:
		parts = append(parts, "q: quit")
	case m.CancelRequested:
		parts = append(parts, "tearing down, q: leave now")
	default:
		parts = append(parts, fmt.Sprintf("%s: %s", keys.Cancel.Help().Key, keys.Cancel.Help().Desc))
	}
	b.WriteString(footerStyle.Render("  " + strings.Join(parts, "  |  ")))
	b.WriteString("\n")
}

// Helper functions

func candidateIcon(m Model, status race.CandidateStatus) (string, styleFunc) {
	switch status {
	case race.StatusConnected:
		return checkMark, sf(readyStyle)
	case race.StatusFailed:
		return crossMark, sf(failedStyle)
	case race.StatusCancelled:
		return cancelMark, sf(dimStyle)
	case race.StatusConnecting:
		return "[" + m.Spinner.View() + " ]", sf(activeStyle)
	default:
		return pending, sf(dimStyle)
	}
}

func miniBar(pct int) string {
	const width = 10
	pct = max(0, min(pct, 100))
	filled := width * pct / 100
	return progressBarFull.Render(strings.Repeat("█", filled)) + progressBarEmpty.Render(strings.Repeat("░", width-filled))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
