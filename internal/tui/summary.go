package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wio/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

// SummaryRows lays out the batch totals.
func SummaryRows(s processor.Summary) []SummaryRow {
	rows := []SummaryRow{
		{Label: "Files found", Value: fmt.Sprintf("%d", s.Total)},
		{Label: "Processed", Value: fmt.Sprintf("%d", s.Processed)},
		{Label: "Errors", Value: fmt.Sprintf("%d", s.Failed)},
	}
	if s.Skipped > 0 {
		rows = append(rows, SummaryRow{Label: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)})
	}
	if s.OverBudget > 0 {
		rows = append(rows, SummaryRow{Label: "Over budget at floor", Value: fmt.Sprintf("%d", s.OverBudget)})
	}
	rows = append(rows,
		SummaryRow{Label: "Size before", Value: FormatBytes(s.BytesBefore)},
		SummaryRow{Label: "Size after", Value: FormatBytes(s.BytesAfter)},
		SummaryRow{Label: "Space saved", Value: FormatBytes(s.BytesSaved())},
	)
	return rows
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// RenderErrors lists every failure with its path, kind and cause.
func RenderErrors(errs []*processor.ReductionError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, fmt.Sprintf("%s %s: %s - %s",
			errorTagStyle.Render("[ERROR]"),
			pathStyle.Render(e.Path),
			kindStyle.Render(string(e.Kind)),
			e.Message(),
		))
	}
	return strings.Join(lines, "\n")
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	if n < unit {
		return fmt.Sprintf("%s%d B", sign, n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %ciB", sign, float64(n)/float64(div), "KMGTPE"[exp])
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle    = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	errorTagStyle = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	pathStyle     = lipgloss.NewStyle().Foreground(ColorAccent)
	kindStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
)
