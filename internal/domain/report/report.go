// Package report assembles distribution matrices and their insights into a
// report and renders it as HTML, Markdown, XLSX or JSON.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/narrative"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/money"
)

const (
	DefaultTitle = "Campaign Spend Insights"
	RowTitle     = "Matrix A: How Ads Spend (Row = 100%)"
	ColumnTitle  = "Matrix B: Channel Budget Share (Column = 100%)"
)

// CampaignTotal is the absolute spend of one campaign.
type CampaignTotal struct {
	Campaign string       `json:"campaign"`
	Spend    *money.Money `json:"spend"`
	Share    float64      `json:"share"`
}

// Report is one generated analysis.
type Report struct {
	ID            uuid.UUID                  `json:"id"`
	Title         string                     `json:"title"`
	GeneratedAt   time.Time                  `json:"generated_at"`
	RecordCount   int                        `json:"record_count"`
	Currency      string                     `json:"currency"`
	Row           *distribution.Distribution `json:"row_distribution"`
	Column        *distribution.Distribution `json:"column_distribution"`
	RowInsight    narrative.Insight          `json:"row_insight"`
	ColumnInsight narrative.Insight          `json:"column_insight"`
	Totals        []CampaignTotal            `json:"totals"`
	GrandTotal    *money.Money               `json:"grand_total"`
}

// Input carries everything Build needs.
type Input struct {
	Title         string
	Currency      string
	GeneratedAt   time.Time
	RecordCount   int
	Aggregate     *distribution.Matrix
	Row           *distribution.Distribution
	Column        *distribution.Distribution
	RowInsight    narrative.Insight
	ColumnInsight narrative.Insight
}

// Build creates a report with a fresh id and per-campaign spend totals.
func Build(in Input) *Report {
	if in.Title == "" {
		in.Title = DefaultTitle
	}
	if in.Currency == "" {
		in.Currency = money.USD
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}

	r := &Report{
		ID:            uuid.New(),
		Title:         in.Title,
		GeneratedAt:   in.GeneratedAt,
		RecordCount:   in.RecordCount,
		Currency:      in.Currency,
		Row:           in.Row,
		Column:        in.Column,
		RowInsight:    in.RowInsight,
		ColumnInsight: in.ColumnInsight,
		GrandTotal:    money.Zero(in.Currency),
	}

	if in.Aggregate.IsEmpty() {
		return r
	}

	var grand float64
	sums := in.Aggregate.RowSums()
	for _, s := range sums {
		grand += s
	}
	spends := make([]*money.Money, 0, len(sums))
	for i, campaign := range in.Aggregate.Rows {
		spent := money.FromSpend(sums[i], in.Currency)
		spends = append(spends, spent)
		r.Totals = append(r.Totals, CampaignTotal{
			Campaign: campaign,
			Spend:    spent,
			Share:    money.RoundPercent(money.Share(sums[i], grand)),
		})
	}
	// Every total is in the grand total currency.
	if total, err := money.Sum(r.GrandTotal.Currency(), spends...); err == nil {
		r.GrandTotal = total
	}
	return r
}

// IsEmpty reports whether the report was built from no records.
func (r *Report) IsEmpty() bool {
	return r.Row.IsEmpty() && r.Column.IsEmpty()
}

// Format is an output encoding of a report.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatXLSX     Format = "xlsx"
	FormatJSON     Format = "json"
)

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// ParseFormats parses a comma-separated list such as "html,xlsx".
func ParseFormats(s string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "markdown" {
			f = FormatMarkdown
		}
		switch f {
		case "":
			continue
		case FormatHTML, FormatMarkdown, FormatXLSX, FormatJSON:
		default:
			return nil, fmt.Errorf("unknown report format %q", part)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return []Format{FormatHTML}, nil
	}
	return formats, nil
}

// Render encodes the report in the given format.
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatHTML:
		return RenderHTML(r)
	case FormatMarkdown:
		return []byte(RenderMarkdown(r)), nil
	case FormatXLSX:
		return RenderXLSX(r)
	case FormatJSON:
		return RenderJSON(r)
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}
