package report

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"percent":   distribution.FormatPercent,
		"insight":   insightHTML,
		"timestamp": func(r *Report) string { return r.GeneratedAt.Format("2006-01-02 15:04:05") },
	}).ParseFS(templatesFS, "templates/*.html.tmpl"),
)

type htmlSection struct {
	Title   string
	Corner  string
	Dist    *distribution.Distribution
	Insight string
	Source  string
}

func (s htmlSection) Matrix() *distribution.Matrix {
	if s.Dist == nil || s.Dist.Matrix == nil {
		return distribution.NewMatrix(nil, nil)
	}
	return s.Dist.Matrix
}

// TotalRow and TotalColumn go by position so a label named "Total" is styled
// like any other.
func (s htmlSection) TotalRow(i int) bool {
	return s.Dist != nil && s.Dist.Orientation == distribution.ByColumn && i == s.Dist.TotalIndex()
}

func (s htmlSection) TotalColumn(j int) bool {
	return s.Dist != nil && s.Dist.Orientation == distribution.ByRow && j == s.Dist.TotalIndex()
}

type htmlView struct {
	*Report
	Sections []htmlSection
}

// RenderHTML renders a self-contained HTML document.
func RenderHTML(r *Report) ([]byte, error) {
	view := htmlView{
		Report: r,
		Sections: []htmlSection{
			{Title: RowTitle, Corner: "Campaign", Dist: r.Row, Insight: r.RowInsight.Text, Source: r.RowInsight.Source},
			{Title: ColumnTitle, Corner: "Campaign \\ Channel", Dist: r.Column, Insight: r.ColumnInsight.Text, Source: r.ColumnInsight.Source},
		},
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.Bytes(), nil
}

// insightHTML escapes narrative text, then turns **bold** runs and newlines
// into markup.
func insightHTML(text string) template.HTML {
	escaped := html.EscapeString(strings.TrimSpace(text))
	escaped = boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}
