// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec runs the job daily at 6:00.
const DefaultSpec = "0 6 * * *"

// ErrAlreadyRunning is returned by RunNow while a run is in progress.
var ErrAlreadyRunning = errors.New("job already running")

// Job is the work triggered on every tick.
type Job func(ctx context.Context) error

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	job     Job
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// NewScheduler creates a scheduler running job on spec, a standard 5-field
// cron expression. Each run is bounded by timeout.
func NewScheduler(spec string, job Job, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		spec:    spec,
		job:     job,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("spec", s.spec),
		slog.Time("next_run", s.Next()),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once a running job finishes.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns when the job last finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// RunNow runs the job immediately and waits for it. Overlapping runs are
// rejected with ErrAlreadyRunning.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.job(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return err
	}

	s.logger.Info("scheduled job completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Scheduler) tick() {
	if err := s.RunNow(context.Background()); errors.Is(err, ErrAlreadyRunning) {
		s.logger.Warn("skipping scheduled run, previous run still in progress")
	}
}
