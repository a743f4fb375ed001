package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Formatter formats cost exposure for display.
type Formatter struct {
	width int
}

// NewFormatter creates a new formatter.
func NewFormatter() *Formatter {
	return &Formatter{width: 61}
}

// Format returns a boxed exposure summary for terminal display.
func (f *Formatter) Format(e *Exposure) string {
	var sb strings.Builder
	w := f.width

	sb.WriteString(boxTop(w))
	sb.WriteString(boxLine("gpurace Cost Exposure", w))
	sb.WriteString(boxLine(fmt.Sprintf("Candidates: %d in %d round(s)", len(e.Items), len(e.Rounds)), w))
	sb.WriteString(boxSep(w))

	sb.WriteString(boxEmpty(w))
	for _, item := range e.Items {
		sb.WriteString(boxLine(fmt.Sprintf("R%d %-32s %8s/h", item.Round, truncate(item.Description, 32), item.Hourly.StringFixed(2)), w))
	}

	sb.WriteString(boxDash(w))
	for _, rc := range e.Rounds {
		label := fmt.Sprintf("After round %d (%d running)", rc.Round, rc.Candidates)
		sb.WriteString(boxLine(fmt.Sprintf("%-36s %8s/h", label, rc.Cumulative.StringFixed(2)), w))
	}
	sb.WriteString(boxDash(w))
	sb.WriteString(boxLine(fmt.Sprintf("%-36s %8s/h", "Peak", e.PeakHourly.StringFixed(2)), w))
	sb.WriteString(boxLine(fmt.Sprintf("%-36s %8s", "Worst case (all rounds time out)", e.WorstCase.StringFixed(2)), w))
	sb.WriteString(boxEmpty(w))
	sb.WriteString(boxBottom(w))

	sb.WriteString(fmt.Sprintf("\n  Round timeout: %s. Losers are torn down once a winner connects.\n", e.RoundTimeout))
	return sb.String()
}

// FormatCompact returns a single-line cost summary.
func (f *Formatter) FormatCompact(e *Exposure) string {
	return fmt.Sprintf("%d candidates: peak $%s/h, worst case $%s",
		len(e.Items), e.PeakHourly.StringFixed(2), e.WorstCase.StringFixed(2))
}

// FormatJSON returns the exposure as indented JSON.
func (f *Formatter) FormatJSON(e *Exposure) (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal exposure: %w", err)
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func boxTop(width int) string {
	return fmt.Sprintf("┌%s┐\n", strings.Repeat("─", width-2))
}

func boxBottom(width int) string {
	return fmt.Sprintf("└%s┘\n", strings.Repeat("─", width-2))
}

func boxSep(width int) string {
	return fmt.Sprintf("├%s┤\n", strings.Repeat("─", width-2))
}

func boxDash(width int) string {
	return fmt.Sprintf("│ %s │\n", strings.Repeat("─", width-4))
}

func boxLine(text string, width int) string {
	padding := width - 4 - len(text)
	if padding < 0 {
		padding = 0
		text = text[:width-4]
	}
	return fmt.Sprintf("│ %s%s │\n", text, strings.Repeat(" ", padding))
}

func boxEmpty(width int) string {
	return fmt.Sprintf("│%s│\n", strings.Repeat(" ", width-2))
}
