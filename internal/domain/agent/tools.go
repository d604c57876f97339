package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/gemini"
)

const (
	ToolDistributionMatrices = "get_distribution_matrices"
	ToolCampaignBreakdown    = "get_campaign_breakdown"
)

// Declarations describes the tools to the model.
func Declarations() []gemini.FunctionDeclaration {
	return []gemini.FunctionDeclaration{
		{
			Name:        ToolDistributionMatrices,
			Description: "Returns Matrix A (row-normalized, how each campaign splits its spend across channels) and Matrix B (column-normalized, each channel's budget share per campaign) as markdown tables, plus the dominant channel per campaign and dominant campaign per channel.",
		},
		{
			Name:        ToolCampaignBreakdown,
			Description: "Returns the channel split and absolute spend for one campaign, or the campaign split for one channel. Names are matched approximately.",
			Parameters: &gemini.Schema{
				Type: "object",
				Properties: map[string]*gemini.Schema{
					"name": {Type: "string", Description: "Campaign or channel name, e.g. ads1 or facebook."},
				},
				Required: []string{"name"},
			},
		},
	}
}

// Toolbox executes tool calls against the current report.
type Toolbox struct {
	provider ReportProvider
}

func NewToolbox(provider ReportProvider) *Toolbox {
	return &Toolbox{provider: provider}
}

// Execute runs one call. Failures are reported to the model in the response
// payload rather than aborting the turn.
func (t *Toolbox) Execute(ctx context.Context, call gemini.FunctionCall) map[string]any {
	r, err := t.provider.Current(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("failed to load report: %w", err))
	}

	switch call.Name {
	case ToolDistributionMatrices:
		return DistributionMatrices(r)
	case ToolCampaignBreakdown:
		name, _ := call.Args["name"].(string)
		return CampaignBreakdown(r, name)
	default:
		return errorResult(fmt.Errorf("unknown tool %q", call.Name))
	}
}

// DistributionMatrices renders both matrices and their findings.
func DistributionMatrices(r *report.Report) map[string]any {
	if r.IsEmpty() {
		return map[string]any{"empty": true, "message": "No spend data available."}
	}
	return map[string]any{
		"matrix_a":          r.Row.Markdown(),
		"matrix_b":          r.Column.Markdown(),
		"campaign_dominant": findingStrings(distribution.Summarize(r.Row)),
		"channel_dominant":  findingStrings(distribution.Summarize(r.Column)),
		"record_count":      r.RecordCount,
	}
}

// CampaignBreakdown resolves name to the closest campaign or channel and
// returns its shares. Exact matches win, then the best fuzzy rank.
func CampaignBreakdown(r *report.Report, name string) map[string]any {
	if name == "" {
		return errorResult(errors.New("name is required"))
	}
	if r.IsEmpty() {
		return map[string]any{"empty": true, "message": "No spend data available."}
	}

	campaigns := r.Row.Subjects()
	channels := r.Column.Subjects()

	if match, ok := resolve(name, campaigns); ok {
		shares := make(map[string]string)
		for _, ch := range r.Row.Counterparts() {
			v, _ := r.Row.Share(match, ch)
			shares[ch] = distribution.FormatPercent(v)
		}
		out := map[string]any{
			"campaign":       match,
			"channel_shares": shares,
		}
		for _, total := range r.Totals {
			if total.Campaign == match {
				out["spend"] = total.Spend.Display()
				out["share_of_total"] = distribution.FormatPercent(total.Share)
			}
		}
		return out
	}

	if match, ok := resolve(name, channels); ok {
		shares := make(map[string]string)
		for _, c := range r.Column.Counterparts() {
			v, _ := r.Column.Share(match, c)
			shares[c] = distribution.FormatPercent(v)
		}
		return map[string]any{
			"channel":         match,
			"campaign_shares": shares,
		}
	}

	return map[string]any{
		"error":     fmt.Sprintf("no campaign or channel matches %q", name),
		"campaigns": campaigns,
		"channels":  channels,
	}
}

func resolve(name string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if c == name {
			return c, true
		}
	}
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) == 0 {
		return "", false
	}
	sort.Sort(ranks)
	return ranks[0].Target, true
}

func findingStrings(findings []distribution.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.String())
	}
	return out
}

func errorResult(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
