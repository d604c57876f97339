package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/narrative"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

var generatedAt = time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

func buildReport(records []spend.Record) *report.Report {
	agg := distribution.Aggregate(records)
	row, col := distribution.Normalize(agg)
	svc := narrative.NewService(nil, "", narrative.DefaultOptions(), nil, nil)

	return report.Build(report.Input{
		GeneratedAt:   generatedAt,
		RecordCount:   len(records),
		Aggregate:     agg,
		Row:           row,
		Column:        col,
		RowInsight:    svc.Insight(context.Background(), row),
		ColumnInsight: svc.Insight(context.Background(), col),
	})
}

func sampleReport() *report.Report {
	return buildReport([]spend.Record{
		{Campaign: "ads1", Month: 6, Year: 2025, Channel: "channel1", Spend: 200},
		{Campaign: "ads1", Month: 6, Year: 2025, Channel: "channel2", Spend: 800},
		{Campaign: "ads2", Month: 11, Year: 2025, Channel: "channel1", Spend: 3000},
	})
}

func TestBuild(t *testing.T) {
	r := sampleReport()

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, report.DefaultTitle, r.Title)
	assert.Equal(t, "USD", r.Currency)
	assert.Equal(t, 3, r.RecordCount)
	require.Len(t, r.Totals, 2)
	assert.Equal(t, "ads1", r.Totals[0].Campaign)
	assert.Equal(t, int64(100000), r.Totals[0].Spend.Minor())
	assert.Equal(t, 25.0, r.Totals[0].Share)
	assert.Equal(t, 75.0, r.Totals[1].Share)
	assert.Equal(t, int64(400000), r.GrandTotal.Minor())
	assert.False(t, r.IsEmpty())
}

func TestRenderHTML(t *testing.T) {
	out, err := report.RenderHTML(sampleReport())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, report.RowTitle)
	assert.Contains(t, html, report.ColumnTitle)
	assert.Contains(t, html, "Generated 2025-12-01 09:30:00 from 3 records.")
	assert.Contains(t, html, "<td>ads1</td><td>20.00%</td><td>80.00%</td><td class=\"total\">100.00%</td>")
	assert.Contains(t, html, "<strong>ads1</strong> focuses primarily on <strong>channel2</strong>")
	assert.Contains(t, html, "<strong>Ad Strategy Summary</strong>:<br>")
	assert.Contains(t, html, "$4,000.00")
}

func TestRenderHTML_EscapesNarrative(t *testing.T) {
	r := sampleReport()
	r.RowInsight.Text = "<script>alert(1)</script>\n**bold**"
	r.RowInsight.Source = "gemini"

	out, err := report.RenderHTML(r)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "<script>alert(1)</script>")
	assert.Contains(t, string(out), "&lt;script&gt;alert(1)&lt;/script&gt;<br><strong>bold</strong>")
	assert.Contains(t, string(out), "Insight source: gemini")
}

func TestRenderHTML_TotalStylingFollowsPosition(t *testing.T) {
	r := buildReport([]spend.Record{
		{Campaign: "Total", Month: 1, Year: 2025, Channel: "channel1", Spend: 30},
		{Campaign: "Total", Month: 1, Year: 2025, Channel: "channel2", Spend: 10},
		{Campaign: "Z", Month: 1, Year: 2025, Channel: "channel1", Spend: 10},
	})

	out, err := report.RenderHTML(r)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `<tr><td>Total</td><td>75.00%</td><td>25.00%</td><td class="total">100.00%</td></tr>`)
	assert.Contains(t, html, `<tr><td>Total</td><td>75.00%</td><td>100.00%</td></tr>`)
	assert.Contains(t, html, `<tr class="total"><td>Total</td><td>100.00%</td><td>100.00%</td></tr>`)
	assert.Equal(t, 1, strings.Count(html, `<tr class="total">`))
	assert.Equal(t, 1, strings.Count(html, `<th class="total">`))
}

func TestRender_EmptyReport(t *testing.T) {
	r := buildReport(nil)
	require.True(t, r.IsEmpty())
	assert.Empty(t, r.Totals)

	for _, f := range []report.Format{report.FormatHTML, report.FormatMarkdown, report.FormatXLSX, report.FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			out, err := report.Render(r, f)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}

	html, err := report.RenderHTML(r)
	require.NoError(t, err)
	assert.Contains(t, string(html), "No spend data available.")
}

func TestRenderMarkdown(t *testing.T) {
	md := report.RenderMarkdown(sampleReport())

	assert.True(t, strings.HasPrefix(md, "# Campaign Spend Insights\n"))
	assert.Contains(t, md, "## "+report.RowTitle)
	assert.Contains(t, md, "| Campaign | channel1 | channel2 | Total |")
	assert.Contains(t, md, "| ads2 | 100.00% | 0.00% | 100.00% |")
	assert.Contains(t, md, "| ads1 | 6.25% | 100.00% |")
	assert.Contains(t, md, "| Total | 100.00% | 100.00% |")
	assert.Contains(t, md, "**Channel Share Summary**:")
	assert.Contains(t, md, "| ads2 | $3,000.00 | 75.00% |")
}

func TestRenderXLSX(t *testing.T) {
	out, err := report.RenderXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Matrix A", "Matrix B", "Insights"}, f.GetSheetList())

	title, err := f.GetCellValue("Matrix A", "A1")
	require.NoError(t, err)
	assert.Equal(t, report.RowTitle, title)

	header, err := f.GetCellValue("Matrix A", "D3")
	require.NoError(t, err)
	assert.Equal(t, "Total", header)

	label, err := f.GetCellValue("Matrix B", "A6")
	require.NoError(t, err)
	assert.Equal(t, "Total", label)

	share, err := f.GetCellValue("Matrix A", "C4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0.8", share)
}

func TestRenderJSON(t *testing.T) {
	out, err := report.RenderJSON(sampleReport())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "row_distribution")
	assert.Contains(t, decoded, "column_insight")
	assert.Equal(t, float64(3), decoded["record_count"])
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      string
		want    []report.Format
		wantErr bool
	}{
		{"", []report.Format{report.FormatHTML}, false},
		{"html,xlsx", []report.Format{report.FormatHTML, report.FormatXLSX}, false},
		{" Markdown , md ,json", []report.Format{report.FormatMarkdown, report.FormatJSON}, false},
		{"pdf", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := report.ParseFormats(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
