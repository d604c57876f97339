// Package insights runs the report pipeline: load spend records, build both
// distributions with their narratives, then publish the rendered report.
package insights

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/delivery"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/narrative"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/storage"
)

const (
	tracerName = "github.com/FACorreiaa/campaign-spend-insights/internal/domain/insights"

	// DefaultKeyPrefix is where artifacts are stored.
	DefaultKeyPrefix = "reports"
)

// Mailer sends a report by email.
type Mailer interface {
	Enabled() bool
	SendReport(ctx context.Context, r *report.Report, attachments []delivery.Attachment) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	ReportGenerated(records int, elapsed time.Duration, err error)
	PublishFailed(target string)
}

// Options configure report content and publishing.
type Options struct {
	Title     string
	Currency  string
	Formats   []report.Format
	KeyPrefix string
}

// Dependencies are the collaborators of Service. Only Source and Narratives
// are required.
type Dependencies struct {
	Source     spend.Source
	Narratives *narrative.Service
	Storage    storage.Storage
	Mailer     Mailer
	Runs       RunRepository
	Metrics    Recorder
}

// PublishResult lists what Publish produced.
type PublishResult struct {
	Artifacts []string `json:"artifacts"`
	Emailed   bool     `json:"emailed"`
}

// Service handles the report pipeline and holds the latest report
type Service struct {
	deps   Dependencies
	opts   Options
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	latest *report.Report
}

// NewService creates a new insights service
func NewService(deps Dependencies, opts Options, logger *slog.Logger) *Service {
	if len(opts.Formats) == 0 {
		opts.Formats = []report.Format{report.FormatHTML}
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}

	return &Service{
		deps:   deps,
		opts:   opts,
		tracer: otel.Tracer(tracerName),
		logger: logger,
		now:    time.Now,
	}
}

// Generate loads the records and builds a new report. A missing input is
// returned as is so callers can match spend.ErrMissingInput; no partial
// report is produced. The report becomes the latest one.
func (s *Service) Generate(ctx context.Context) (*report.Report, error) {
	ctx, span := s.tracer.Start(ctx, "insights.Generate")
	defer span.End()

	start := s.now()
	r, err := s.generate(ctx, span)
	elapsed := s.now().Sub(start)

	records := 0
	if r != nil {
		records = r.RecordCount
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ReportGenerated(records, elapsed, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("report generation failed", slog.Any("error", err))
		return nil, err
	}

	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()

	s.logger.Info("report generated",
		slog.String("report_id", r.ID.String()),
		slog.Int("records", r.RecordCount),
		slog.String("row_insight", r.RowInsight.Source),
		slog.String("column_insight", r.ColumnInsight.Source),
		slog.Duration("elapsed", elapsed),
	)
	return r, nil
}

func (s *Service) generate(ctx context.Context, span trace.Span) (*report.Report, error) {
	records, err := s.deps.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend records: %w", err)
	}
	span.SetAttributes(attribute.Int("spend.records", len(records)))

	agg := distribution.Aggregate(records)
	row, col := distribution.Normalize(agg)
	span.SetAttributes(
		attribute.Int("spend.campaigns", len(agg.Rows)),
		attribute.Int("spend.channels", len(agg.Columns)),
	)

	rowInsight := s.narrate(ctx, row)
	colInsight := s.narrate(ctx, col)

	return report.Build(report.Input{
		Title:         s.opts.Title,
		Currency:      s.opts.Currency,
		GeneratedAt:   s.now(),
		RecordCount:   len(records),
		Aggregate:     agg,
		Row:           row,
		Column:        col,
		RowInsight:    rowInsight,
		ColumnInsight: colInsight,
	}), nil
}

func (s *Service) narrate(ctx context.Context, d *distribution.Distribution) narrative.Insight {
	ctx, span := s.tracer.Start(ctx, "insights.Narrate",
		trace.WithAttributes(attribute.String("orientation", string(d.Orientation))))
	defer span.End()

	insight := s.deps.Narratives.Insight(ctx, d)
	span.SetAttributes(attribute.String("narrative.source", insight.Source))
	return insight
}

// Publish renders r in every configured format, stores each artifact under
// <prefix>/<id>.<ext> and <prefix>/latest.<ext>, emails it when a mailer is
// enabled and records the run. Every step is attempted; failures are joined.
func (s *Service) Publish(ctx context.Context, r *report.Report) (*PublishResult, error) {
	ctx, span := s.tracer.Start(ctx, "insights.Publish",
		trace.WithAttributes(attribute.String("report.id", r.ID.String())))
	defer span.End()

	result := &PublishResult{}
	var errs []error
	var attachments []delivery.Attachment

	for _, f := range s.opts.Formats {
		body, err := report.Render(r, f)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to render %s: %w", f, err))
			continue
		}
		if f == report.FormatHTML || f == report.FormatXLSX {
			attachments = append(attachments, delivery.Attachment{
				Filename: fmt.Sprintf("campaign-spend-%s.%s", r.GeneratedAt.Format("2006-01-02"), f.Extension()),
				Content:  body,
			})
		}

		if s.deps.Storage == nil {
			continue
		}
		for _, key := range []string{s.key(r.ID.String(), f), s.key("latest", f)} {
			if _, err := s.deps.Storage.Put(ctx, key, f.ContentType(), bytes.NewReader(body)); err != nil {
				s.publishFailed("storage")
				errs = append(errs, fmt.Errorf("failed to store %s: %w", key, err))
				continue
			}
			result.Artifacts = append(result.Artifacts, key)
		}
	}

	if s.deps.Mailer != nil && s.deps.Mailer.Enabled() {
		if err := s.deps.Mailer.SendReport(ctx, r, attachments); err != nil {
			s.publishFailed("email")
			errs = append(errs, err)
		} else {
			result.Emailed = true
		}
	}

	if s.deps.Runs != nil {
		run := &Run{
			ID:           r.ID,
			GeneratedAt:  r.GeneratedAt,
			RecordCount:  r.RecordCount,
			RowSource:    r.RowInsight.Source,
			ColumnSource: r.ColumnInsight.Source,
			Artifacts:    result.Artifacts,
		}
		if run.Artifacts == nil {
			run.Artifacts = []string{}
		}
		if err := s.deps.Runs.SaveRun(ctx, run); err != nil {
			s.publishFailed("history")
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish incomplete")
		s.logger.Warn("report published with errors",
			slog.String("report_id", r.ID.String()),
			slog.Int("artifacts", len(result.Artifacts)),
			slog.Any("error", err),
		)
		return result, err
	}

	s.logger.Info("report published",
		slog.String("report_id", r.ID.String()),
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Bool("emailed", result.Emailed),
	)
	return result, nil
}

// Refresh generates and publishes a report. The report is returned even when
// publishing fails.
func (s *Service) Refresh(ctx context.Context) (*report.Report, error) {
	r, err := s.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Publish(ctx, r); err != nil {
		return r, fmt.Errorf("failed to publish report: %w", err)
	}
	return r, nil
}

// Latest returns the most recently generated report.
func (s *Service) Latest() (*report.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Current returns the latest report, generating one if none exists yet.
func (s *Service) Current(ctx context.Context) (*report.Report, error) {
	if r, ok := s.Latest(); ok {
		return r, nil
	}
	return s.Generate(ctx)
}

// Runs returns the publish history, most recent first.
func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	if s.deps.Runs == nil {
		return []Run{}, nil
	}
	return s.deps.Runs.ListRuns(ctx, limit)
}

func (s *Service) key(name string, f report.Format) string {
	return fmt.Sprintf("%s/%s.%s", s.opts.KeyPrefix, name, f.Extension())
}

func (s *Service) publishFailed(target string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.PublishFailed(target)
	}
}
