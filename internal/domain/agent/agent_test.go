package agent_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/agent"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/narrative"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/gemini"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleReport() *report.Report {
	records := []spend.Record{
		{Campaign: "ads1", Month: 1, Year: 2025, Channel: "facebook", Spend: 25},
		{Campaign: "ads1", Month: 2, Year: 2025, Channel: "google", Spend: 75},
		{Campaign: "ads2", Month: 1, Year: 2025, Channel: "facebook", Spend: 75},
		{Campaign: "ads2", Month: 3, Year: 2025, Channel: "google", Spend: 25},
	}
	agg := distribution.Aggregate(records)
	row, col := distribution.Normalize(agg)
	svc := narrative.NewService(nil, "", narrative.DefaultOptions(), nil, discardLogger())

	return report.Build(report.Input{
		GeneratedAt:   time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		RecordCount:   len(records),
		Aggregate:     agg,
		Row:           row,
		Column:        col,
		RowInsight:    svc.Insight(context.Background(), row),
		ColumnInsight: svc.Insight(context.Background(), col),
	})
}

type staticProvider struct {
	report *report.Report
	err    error
}

func (p staticProvider) Current(context.Context) (*report.Report, error) {
	return p.report, p.err
}

// scriptedModel replays responses in order and repeats the last one.
type scriptedModel struct {
	responses []*gemini.Response
	errs      []error
	requests  []*gemini.Request
}

func (m *scriptedModel) GenerateContent(_ context.Context, req *gemini.Request) (*gemini.Response, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func callResponse(name string, args map[string]any) *gemini.Response {
	return &gemini.Response{Candidates: []gemini.Candidate{{Content: gemini.Content{
		Role:  gemini.RoleModel,
		Parts: []gemini.Part{{FunctionCall: &gemini.FunctionCall{Name: name, Args: args}}},
	}}}}
}

func textResponse(text string) *gemini.Response {
	return &gemini.Response{Candidates: []gemini.Candidate{{Content: gemini.Content{
		Role:  gemini.RoleModel,
		Parts: []gemini.Part{{Text: text}},
	}}}}
}

func fastOptions() agent.Options {
	return agent.Options{MaxIterations: 4, MaxAttempts: 2, Delay: time.Millisecond, Timeout: time.Second}
}

func TestAsk_WithoutModelReturnsReport(t *testing.T) {
	r := sampleReport()
	a := agent.New(nil, staticProvider{report: r}, fastOptions(), discardLogger())

	answer, err := a.Ask(context.Background(), agent.NewSession(), "Where does ads1 spend?")
	require.NoError(t, err)
	assert.Equal(t, agent.SourceFallback, answer.Source)
	assert.Equal(t, report.RenderMarkdown(r), answer.Text)
}

func TestAsk_ToolLoop(t *testing.T) {
	model := &scriptedModel{responses: []*gemini.Response{
		callResponse(agent.ToolDistributionMatrices, nil),
		textResponse("ads1 puts 75.00% into google."),
	}}
	a := agent.New(model, staticProvider{report: sampleReport()}, fastOptions(), discardLogger())
	session := agent.NewSession()

	answer, err := a.Ask(context.Background(), session, "Summarize spend")
	require.NoError(t, err)
	assert.Equal(t, agent.SourceModel, answer.Source)
	assert.Equal(t, "ads1 puts 75.00% into google.", answer.Text)
	assert.Equal(t, []string{agent.ToolDistributionMatrices}, answer.ToolCalls)

	// user question, model call, tool result, model answer
	require.Len(t, session.History, 4)
	assert.Equal(t, gemini.RoleUser, session.History[0].Role)
	fr := session.History[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, agent.ToolDistributionMatrices, fr.Name)
	assert.Contains(t, fr.Response["matrix_a"], "| ads1 | 25.00% | 75.00% | 100.00% |")

	require.Len(t, model.requests, 2)
	require.NotNil(t, model.requests[0].SystemInstruction)
	assert.Equal(t, agent.Instruction, model.requests[0].SystemInstruction.Parts[0].Text)
	require.Len(t, model.requests[0].Tools, 1)
	assert.Len(t, model.requests[0].Tools[0].FunctionDeclarations, 2)
}

func TestAsk_MaxIterationsFallsBack(t *testing.T) {
	model := &scriptedModel{responses: []*gemini.Response{
		callResponse(agent.ToolDistributionMatrices, nil),
	}}
	a := agent.New(model, staticProvider{report: sampleReport()}, fastOptions(), discardLogger())
	session := agent.NewSession()

	answer, err := a.Ask(context.Background(), session, "loop forever")
	require.NoError(t, err)
	assert.Equal(t, agent.SourceFallback, answer.Source)
	assert.Len(t, model.requests, 4)
	assert.Empty(t, session.History)
}

func TestAsk_RetriesRetryableErrors(t *testing.T) {
	model := &scriptedModel{
		errs:      []error{&gemini.APIError{StatusCode: 429, Message: "quota"}},
		responses: []*gemini.Response{nil, textResponse("done")},
	}
	a := agent.New(model, staticProvider{report: sampleReport()}, fastOptions(), discardLogger())

	answer, err := a.Ask(context.Background(), agent.NewSession(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "done", answer.Text)
	assert.Len(t, model.requests, 2)
}

func TestAsk_PermanentErrorFallsBack(t *testing.T) {
	model := &scriptedModel{
		errs:      []error{&gemini.APIError{StatusCode: 400, Message: "bad request"}},
		responses: []*gemini.Response{textResponse("unused")},
	}
	a := agent.New(model, staticProvider{report: sampleReport()}, fastOptions(), discardLogger())

	answer, err := a.Ask(context.Background(), agent.NewSession(), "hi")
	require.NoError(t, err)
	assert.Equal(t, agent.SourceFallback, answer.Source)
	assert.Len(t, model.requests, 1)
}

func TestAsk_ProviderError(t *testing.T) {
	missing := &spend.MissingInputError{Source: "data/spend.csv", Err: errors.New("no such file")}
	a := agent.New(nil, staticProvider{err: missing}, fastOptions(), discardLogger())

	_, err := a.Ask(context.Background(), agent.NewSession(), "hi")
	require.Error(t, err)
	assert.True(t, spend.IsMissingInput(err))
}

func TestCampaignBreakdown(t *testing.T) {
	r := sampleReport()

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, out map[string]any)
	}{
		{
			name:  "exact campaign",
			query: "ads2",
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "ads2", out["campaign"])
				assert.Equal(t, map[string]string{"facebook": "75.00%", "google": "25.00%"}, out["channel_shares"])
				assert.Equal(t, "50.00%", out["share_of_total"])
			},
		},
		{
			name:  "case insensitive campaign",
			query: "ADS1",
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "ads1", out["campaign"])
			},
		},
		{
			name:  "fuzzy channel",
			query: "fb",
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "facebook", out["channel"])
				assert.Equal(t, map[string]string{"ads1": "25.00%", "ads2": "75.00%"}, out["campaign_shares"])
			},
		},
		{
			name:  "no match",
			query: "twitter",
			check: func(t *testing.T, out map[string]any) {
				assert.Contains(t, out["error"], "twitter")
				assert.Equal(t, []string{"ads1", "ads2"}, out["campaigns"])
			},
		},
		{
			name:  "empty name",
			query: "",
			check: func(t *testing.T, out map[string]any) {
				assert.Equal(t, "name is required", out["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, agent.CampaignBreakdown(r, tt.query))
		})
	}
}

func TestDistributionMatrices_Empty(t *testing.T) {
	empty := report.Build(report.Input{
		Aggregate: distribution.Aggregate(nil),
		Row:       distribution.NormalizeRows(distribution.Aggregate(nil)),
		Column:    distribution.NormalizeColumns(distribution.Aggregate(nil)),
	})

	out := agent.DistributionMatrices(empty)
	assert.Equal(t, true, out["empty"])
}

func TestToolbox_UnknownTool(t *testing.T) {
	tb := agent.NewToolbox(staticProvider{report: sampleReport()})
	out := tb.Execute(context.Background(), gemini.FunctionCall{Name: "delete_everything"})
	assert.Contains(t, out["error"], "unknown tool")
}
