package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

// Colors matching internal/ui/tui/styles.go palette.
var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
)

var (
	checkMark = okStyle.Render("[OK]")
	crossMark = failStyle.Render("[!!]")
	warnMark  = warnStyle.Render("[??]")
)

// candidateRow is one line of the candidate table.
type candidateRow struct {
	Position int         `json:"position"`
	Round    int         `json:"round"`
	Match    offer.Match `json:"match"`
	Offer    offer.Offer `json:"offer"`
}

// candidateRows numbers candidates in launch order.
func candidateRows(candidates []offer.Offer, target offer.Offer, batchSize int) []candidateRow {
	batchSize = max(batchSize, 1)
	rows := make([]candidateRow, len(candidates))
	for i, o := range candidates {
		rows[i] = candidateRow{
			Position: i + 1,
			Round:    i/batchSize + 1,
			Match:    offer.Classify(o, target),
			Offer:    o,
		}
	}
	return rows
}

func renderCandidateTable(w io.Writer, rows []candidateRow) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Round", "Offer", "GPU", "Location", "Price/h", "Verified", "Reliability", "Match")
	for _, r := range rows {
		o := r.Offer
		verified := "no"
		if o.Verified {
			verified = "yes"
		}
		_ = table.Append(
			strconv.Itoa(r.Position),
			strconv.Itoa(r.Round),
			o.ID,
			fmt.Sprintf("%dx %s", o.NumGPUs, o.GPUName),
			o.Location,
			"$"+o.HourlyPrice.StringFixed(2),
			verified,
			strconv.FormatFloat(o.Reliability, 'f', 1, 64)+"%",
			string(r.Match),
		)
	}
	_ = table.Render()
}

func renderRaceTable(w io.Writer, v race.View) {
	table := tablewriter.NewWriter(w)
	table.Header("Offer", "Round", "Status", "Progress", "Error")
	for _, c := range v.Candidates {
		_ = table.Append(
			c.Offer.ID,
			strconv.Itoa(c.Round),
			string(c.Status),
			strconv.Itoa(c.Progress)+"%",
			c.Error,
		)
	}
	_ = table.Render()
}
