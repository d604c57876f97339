// Package agent runs a conversational analyst over the latest spend report.
// The model gathers data through function calls and answers in markdown.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/gemini"
)

const (
	Name = "CampaignInsightAgent"

	Instruction = `You are a marketing analyst for advertising campaign spend.
Call get_distribution_matrices to fetch the two distribution matrices before answering.
Matrix A is row-normalized: each campaign's spend split across channels adds up to 100%.
Matrix B is column-normalized: each channel's budget split across campaigns adds up to 100%.
Answer with both tables in markdown, then interpret them: where each campaign concentrates its
budget and which campaign dominates each channel. Use the exact percentages from the tables.
Use get_campaign_breakdown when the user asks about a single campaign or channel.`

	// SourceModel and SourceFallback tell whether an answer came from the model.
	SourceModel    = "model"
	SourceFallback = "summary"

	maxHistory = 40
)

// ErrMaxIterations is returned when the model keeps calling tools.
var ErrMaxIterations = errors.New("agent exceeded maximum tool iterations")

// Model is the generative backend the agent talks to.
type Model interface {
	GenerateContent(ctx context.Context, req *gemini.Request) (*gemini.Response, error)
}

// ReportProvider returns the report the tools read from.
type ReportProvider interface {
	Current(ctx context.Context) (*report.Report, error)
}

// Options configure the tool loop and its retry policy.
type Options struct {
	MaxIterations int
	MaxAttempts   int
	Delay         time.Duration
	Timeout       time.Duration // whole turn
}

// DefaultOptions mirrors the retry policy used for narratives.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 10,
		MaxAttempts:   3,
		Delay:         2 * time.Second,
		Timeout:       90 * time.Second,
	}
}

// Session is one conversation. It is owned by the caller and is not safe for
// concurrent use.
type Session struct {
	ID      uuid.UUID
	History []gemini.Content
}

// NewSession starts an empty conversation.
func NewSession() *Session {
	return &Session{ID: uuid.New()}
}

// Answer is the agent's reply to one question.
type Answer struct {
	Text      string   `json:"text"`
	Source    string   `json:"source"`
	ToolCalls []string `json:"tool_calls,omitempty"`
}

// Agent answers questions about campaign spend.
type Agent struct {
	model    Model
	provider ReportProvider
	tools    *Toolbox
	opts     Options
	logger   *slog.Logger
}

// New creates an agent. A nil model makes every answer the deterministic
// markdown report.
func New(model Model, provider ReportProvider, opts Options, logger *slog.Logger) *Agent {
	defaults := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		model:    model,
		provider: provider,
		tools:    NewToolbox(provider),
		opts:     opts,
		logger:   logger.With(slog.String("agent", Name)),
	}
}

// Ask answers question within session. Failures of the model degrade to the
// deterministic report; only a failure to obtain the report is returned.
func (a *Agent) Ask(ctx context.Context, session *Session, question string) (*Answer, error) {
	current, err := a.provider.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	if a.model == nil {
		return fallbackAnswer(current), nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	history := append(append([]gemini.Content{}, session.History...), gemini.UserText(question))
	answer, history, err := a.run(ctx, history)
	if err != nil {
		a.logger.Warn("agent turn failed, answering with report",
			slog.String("session_id", session.ID.String()),
			slog.Any("error", err),
		)
		return fallbackAnswer(current), nil
	}

	session.History = trimHistory(history)
	a.logger.Info("agent answered",
		slog.String("session_id", session.ID.String()),
		slog.Int("tool_calls", len(answer.ToolCalls)),
	)
	return answer, nil
}

func (a *Agent) run(ctx context.Context, history []gemini.Content) (*Answer, []gemini.Content, error) {
	answer := &Answer{}

	for i := 0; i < a.opts.MaxIterations; i++ {
		resp, err := a.generate(ctx, history)
		if err != nil {
			return nil, nil, err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Text()
			if text == "" {
				return nil, nil, gemini.ErrNoCandidates
			}
			history = append(history, gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{{Text: text}}})
			answer.Text = text
			answer.Source = SourceModel
			return answer, history, nil
		}

		history = append(history, resp.Candidates[0].Content)
		parts := make([]gemini.Part, 0, len(calls))
		for _, call := range calls {
			answer.ToolCalls = append(answer.ToolCalls, call.Name)
			result := a.tools.Execute(ctx, call)
			a.logger.Debug("tool executed", slog.String("tool", call.Name))
			parts = append(parts, gemini.Part{FunctionResponse: &gemini.FunctionResponse{
				Name:     call.Name,
				Response: result,
			}})
		}
		history = append(history, gemini.Content{Role: gemini.RoleUser, Parts: parts})
	}

	return nil, nil, ErrMaxIterations
}

func (a *Agent) generate(ctx context.Context, history []gemini.Content) (*gemini.Response, error) {
	req := &gemini.Request{
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: Instruction}}},
		Contents:          history,
		Tools:             []gemini.Tool{{FunctionDeclarations: Declarations()}},
	}

	backoff := retry.WithMaxRetries(uint64(a.opts.MaxAttempts-1), retry.NewConstant(a.opts.Delay))

	var resp *gemini.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := a.model.GenerateContent(ctx, req)
		if err != nil {
			if gemini.IsRetryable(err) {
				a.logger.Debug("model call failed, retrying", slog.Any("error", err))
				return retry.RetryableError(err)
			}
			return err
		}
		resp = out
		return nil
	})
	return resp, err
}

func fallbackAnswer(r *report.Report) *Answer {
	return &Answer{
		Text:   report.RenderMarkdown(r),
		Source: SourceFallback,
	}
}

// trimHistory keeps the most recent turns, never starting on a function
// response whose call was cut off.
func trimHistory(history []gemini.Content) []gemini.Content {
	if len(history) <= maxHistory {
		return history
	}
	trimmed := history[len(history)-maxHistory:]
	for len(trimmed) > 0 && (trimmed[0].Role != gemini.RoleUser || hasFunctionResponse(trimmed[0])) {
		trimmed = trimmed[1:]
	}
	return trimmed
}

func hasFunctionResponse(c gemini.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}
