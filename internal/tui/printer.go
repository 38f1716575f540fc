package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wio/internal/processor"
)

// Printer writes one line per finished file. It is the only writer of its
// output while Consume runs, so concurrent workers never interleave a line.
type Printer struct {
	Out io.Writer
}

// Consume drains updates until the channel is closed.
func (p Printer) Consume(updates <-chan processor.ProgressUpdate) {
	for u := range updates {
		switch {
		case u.Result != nil:
			fmt.Fprintln(p.Out, FormatResult(*u.Result))
		case u.Err != nil:
			fmt.Fprintln(p.Out, RenderErrors([]*processor.ReductionError{u.Err}))
		}
	}
}

// FormatResult describes one reduction, e.g.
// "[OK] a.jpg → 98.4KB (quality=70, resize=5000x3000→1200x720)".
func FormatResult(r processor.Result) string {
	var details []string
	if r.Quality > 0 {
		details = append(details, fmt.Sprintf("quality=%d", r.Quality))
	}
	if r.PNGOutcome != "" {
		details = append(details, string(r.PNGOutcome))
	}
	details = append(details, fmt.Sprintf("resize=%dx%d→%dx%d",
		r.OriginalSize.X, r.OriginalSize.Y, r.FinalSize.X, r.FinalSize.Y))

	tag := okStyle.Render("[OK]")
	if !r.BudgetMet {
		tag = overStyle.Render("[OVER]")
	}

	return fmt.Sprintf("%s %s → %.1fKB (%s)", tag, r.Output, r.SizeKB(), strings.Join(details, ", "))
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	overStyle = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
)
