package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

// NoDataText is the narrative for an empty distribution.
const NoDataText = "No spend data available."

// SummaryNarrator renders the Summarizer's findings as markdown bullets.
// It never fails.
type SummaryNarrator struct{}

// Narrate implements Narrator.
func (SummaryNarrator) Narrate(_ context.Context, d *distribution.Distribution) (string, error) {
	return FormatFindings(d.Orientation, distribution.Summarize(d)), nil
}

func heading(o distribution.Orientation) string {
	if o == distribution.ByColumn {
		return "**Channel Share Summary**:"
	}
	return "**Ad Strategy Summary**:"
}

// FormatFindings renders findings under the heading for the orientation.
func FormatFindings(o distribution.Orientation, findings []distribution.Finding) string {
	if len(findings) == 0 {
		return NoDataText
	}

	var b strings.Builder
	b.WriteString(heading(o))
	for _, f := range findings {
		b.WriteString("\n- ")
		b.WriteString(findingLine(o, f))
	}
	return b.String()
}

func findingLine(o distribution.Orientation, f distribution.Finding) string {
	if f.Percentage == 0 {
		return fmt.Sprintf("**%s** has no recorded spend.", f.Subject)
	}

	var line string
	if o == distribution.ByColumn {
		line = fmt.Sprintf("**%s** is led by **%s** holding a %.2f%% share of the channel budget.",
			f.Subject, f.Counterpart, f.Percentage)
	} else {
		line = fmt.Sprintf("**%s** focuses primarily on **%s** with %.2f%% budget allocation.",
			f.Subject, f.Counterpart, f.Percentage)
	}

	if len(f.TiedWith) > 0 {
		line += fmt.Sprintf(" Tied with **%s**.", strings.Join(f.TiedWith, "**, **"))
	}
	return line
}
