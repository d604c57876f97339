package distribution

import (
	"fmt"
	"strings"
)

// FormatPercent renders a share the way reports show it.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// Markdown renders the distribution as a GitHub-flavored table with the row
// labels in the first column. An empty distribution renders as a note.
func (d *Distribution) Markdown() string {
	if d.IsEmpty() {
		return "_No spend data available._\n"
	}

	m := d.Matrix
	corner := "Campaign"
	if d.Orientation == ByColumn {
		corner = "Campaign \\ Channel"
	}

	var b strings.Builder
	b.WriteString("| " + corner + " | " + strings.Join(m.Columns, " | ") + " |\n")
	b.WriteString("|---" + strings.Repeat("|---:", len(m.Columns)) + "|\n")
	for i, label := range m.Rows {
		cells := make([]string, len(m.Columns))
		for j := range m.Columns {
			cells[j] = FormatPercent(m.Values[i][j])
		}
		b.WriteString("| " + label + " | " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}
