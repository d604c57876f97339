package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderMarkdown renders the report as markdown: both tables, each followed
// by its insight, then the spend totals.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "_Generated %s from %d records._\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"), r.RecordCount)

	fmt.Fprintf(&b, "## %s\n\n", RowTitle)
	b.WriteString(r.Row.Markdown())
	b.WriteString("\n")
	b.WriteString(r.RowInsight.Text)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## %s\n\n", ColumnTitle)
	b.WriteString(r.Column.Markdown())
	b.WriteString("\n")
	b.WriteString(r.ColumnInsight.Text)
	b.WriteString("\n")

	if len(r.Totals) > 0 {
		b.WriteString("\n## Spend by Campaign\n\n")
		b.WriteString("| Campaign | Spend | Share |\n|---|---:|---:|\n")
		for _, t := range r.Totals {
			fmt.Fprintf(&b, "| %s | %s | %.2f%% |\n", t.Campaign, t.Spend.Display(), t.Share)
		}
		fmt.Fprintf(&b, "| **Total** | **%s** | |\n", r.GrandTotal.Display())
	}

	return b.String()
}

// RenderJSON encodes the report as indented JSON.
func RenderJSON(r *Report) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return out, nil
}
