package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Retrier re-runs failed reconciliations.
type Retrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

// Scheduler runs the periodic retry sweep.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New creates a scheduler evaluating cron specs in loc. Each sweep is bounded
// by timeout; a sweep still running when the next one is due is skipped.
func New(loc *time.Location, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
		location: loc,
		timeout:  timeout,
		logger:   logger,
	}
}

// ScheduleRetry installs the retry sweep, replacing any earlier one.
func (s *Scheduler) ScheduleRetry(spec string, r Retrier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	id, err := s.cron.AddFunc(spec, func() { s.sweep(r) })
	if err != nil {
		return fmt.Errorf("add retry job %q: %w", spec, err)
	}
	s.entryID = id
	s.logger.Info("retry sweep scheduled", "spec", spec, "timezone", s.location.String())
	return nil
}

// Next returns when the retry sweep runs next, or the zero time if none is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		<-s.cron.Stop().Done()
		s.started = false
	}
}

func (s *Scheduler) sweep(r Retrier) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := r.RetryFailed(ctx)
	if err != nil {
		s.logger.Error("retry sweep failed", "error", err)
		return
	}
	s.logger.Info("retry sweep", "recovered", n, "duration", time.Since(start))
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
