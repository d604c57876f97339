package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

// Outcomes reported to the Recorder.
const (
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
	OutcomeSkipped   = "skipped"
)

// Recorder receives one outcome per Insight call.
type Recorder interface {
	NarrativeOutcome(orientation, outcome string)
	NarrativeAttempt(err error)
}

// Options bound the calls made to the primary narrator.
type Options struct {
	Timeout       time.Duration // per attempt
	MaxAttempts   int
	Delay         time.Duration
	Exponential   bool
	RatePerMinute int // 0 disables limiting
}

// DefaultOptions returns the policy used when none is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:       20 * time.Second,
		MaxAttempts:   3,
		Delay:         2 * time.Second,
		RatePerMinute: 15,
	}
}

// Service produces Insights. When a primary narrator is configured it is
// tried first under a timeout, bounded retry and rate limit; the summary
// text is used whenever it is absent or fails.
type Service struct {
	primary  Narrator
	name     string
	opts     Options
	limiter  *rate.Limiter
	recorder Recorder
	logger   *slog.Logger
}

// NewService creates a narrative service. primary may be nil, in which case
// every insight uses the summary text.
func NewService(primary Narrator, name string, opts Options, recorder Recorder, logger *slog.Logger) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	return &Service{
		primary:  primary,
		name:     name,
		opts:     opts,
		limiter:  limiter,
		recorder: recorder,
		logger:   logger,
	}
}

// Insight summarizes d and narrates it. It never returns an error: any
// failure of the primary narrator degrades to the summary text.
func (s *Service) Insight(ctx context.Context, d *distribution.Distribution) Insight {
	findings := distribution.Summarize(d)
	insight := Insight{
		Orientation: d.Orientation,
		Findings:    findings,
		Text:        FormatFindings(d.Orientation, findings),
		Source:      SourceSummary,
	}

	if s.primary == nil || d.IsEmpty() {
		s.record(d.Orientation, OutcomeSkipped)
		return insight
	}

	text, err := s.narrate(ctx, d)
	if err != nil {
		s.logger.Warn("narrative generation failed, using summary",
			slog.String("orientation", string(d.Orientation)),
			slog.String("narrator", s.name),
			slog.Any("error", err),
		)
		s.record(d.Orientation, OutcomeFallback)
		return insight
	}

	insight.Text = text
	insight.Source = s.name
	s.record(d.Orientation, OutcomeGenerated)
	return insight
}

func (s *Service) narrate(ctx context.Context, d *distribution.Distribution) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget())
	defer cancel()

	var text string
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		out, err := s.primary.Narrate(attemptCtx, d)
		if s.recorder != nil {
			s.recorder.NarrativeAttempt(err)
		}
		if err != nil {
			s.logger.Debug("narrative attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			if isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		text = out
		return nil
	})
	return text, err
}

// budget caps the whole call: every attempt timing out plus every delay.
func (s *Service) budget() time.Duration {
	attempts := time.Duration(s.opts.MaxAttempts)
	delay := s.opts.Delay
	if s.opts.Exponential {
		delay = s.opts.Delay << (s.opts.MaxAttempts - 1)
	}
	budget := attempts*s.opts.Timeout + (attempts-1)*delay
	if s.limiter != nil {
		budget += attempts * time.Duration(float64(time.Second)/float64(s.limiter.Limit()))
	}
	return budget
}

func (s *Service) backoff() retry.Backoff {
	var b retry.Backoff
	if s.opts.Exponential {
		b = retry.NewExponential(s.opts.Delay)
	} else {
		b = retry.NewConstant(s.opts.Delay)
	}
	return retry.WithMaxRetries(uint64(s.opts.MaxAttempts-1), b)
}

func (s *Service) record(o distribution.Orientation, outcome string) {
	if s.recorder != nil {
		s.recorder.NarrativeOutcome(string(o), outcome)
	}
}

type retryable interface {
	Retryable() bool
}

type timeout interface {
	Timeout() bool
}

func isRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
