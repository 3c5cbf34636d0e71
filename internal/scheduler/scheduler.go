package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	ctxlog "github.com/ErlanBelekov/task-notifier/internal/log"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/robfig/cron/v3"
)

var (
	ErrDuplicateJob    = errors.New("job already scheduled")
	ErrInvalidInterval = errors.New("job interval must be positive")
	ErrUnknownJob      = errors.New("unknown job")
	ErrJobRunning      = errors.New("job is already running")
	ErrStarted         = errors.New("scheduler already started")
	ErrNotStarted      = errors.New("scheduler not started")
)

// staleAfter is how many missed intervals make a job look stuck to Ping.
const staleAfter = 3

// Tick is what a job receives on each run.
type Tick struct {
	Job   string
	RunID string
	Now   time.Time
	State *State
}

// JobFunc is one unit of recurring work. A returned error is logged and counted;
// the next tick is the retry.
type JobFunc func(ctx context.Context, tick Tick) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	running  atomic.Bool
}

type Scheduler struct {
	cron   *cron.Cron
	state  *State
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	jobs      map[string]*job
	order     []string
	startedAt time.Time
}

type Option func(*Scheduler)

// WithClock sets the time source passed to jobs as Tick.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithState(state *State) Option {
	return func(s *Scheduler) { s.state = state }
}

func New(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		state:  NewState(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "scheduler"),
		jobs:   make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) State() *State { return s.state }

// Schedule registers fn to run every interval under name. Jobs must be registered
// before Start.
func (s *Scheduler) Schedule(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: %w", name, ErrInvalidInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startedAt.IsZero() {
		return fmt.Errorf("schedule %s: %w", name, ErrStarted)
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("schedule %s: %w", name, ErrDuplicateJob)
	}
	s.jobs[name] = &job{name: name, interval: interval, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Start fires every registered job at its cadence until Stop. It does not block.
// ctx is the parent of every run's context.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startedAt.IsZero() {
		return ErrStarted
	}

	for _, name := range s.order {
		j := s.jobs[name]
		s.cron.Schedule(cron.Every(j.interval), cron.FuncJob(func() {
			_ = s.run(ctx, j)
		}))
		s.logger.Info("job scheduled", "job", name, "interval", j.interval)
	}

	s.startedAt = s.now()
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.order))
	return nil
}

// Stop stops firing new runs and waits for in-flight ones to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs the named job now, through the same wrapper as a scheduled tick.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, j)
}

// Jobs lists registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Ping reports an error when the scheduler is not running or a job has not completed
// a run for several intervals. Used by the readiness probe.
func (s *Scheduler) Ping(_ context.Context) error {
	s.mu.Lock()
	startedAt := s.startedAt
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	if startedAt.IsZero() {
		return ErrNotStarted
	}
	now := s.now()
	for _, j := range jobs {
		limit := staleAfter * j.interval
		last := startedAt
		if r, ok := s.state.LastRun(j.name); ok {
			last = r.At
		}
		if now.Sub(last) > limit {
			return fmt.Errorf("job %s has not run since %s", j.name, last.Format(time.RFC3339))
		}
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.running.CompareAndSwap(false, true) {
		metrics.JobRunsTotal.WithLabelValues(j.name, "skipped").Inc()
		s.logger.InfoContext(ctx, "job skipped: still running", "job", j.name)
		return ErrJobRunning
	}
	defer j.running.Store(false)

	runID := ctxlog.NewID()
	runCtx, cancel := context.WithTimeout(ctxlog.WithRun(ctx, j.name, runID), j.interval)
	defer cancel()

	metrics.JobsInFlight.WithLabelValues(j.name).Set(1)
	defer metrics.JobsInFlight.WithLabelValues(j.name).Set(0)

	tick := Tick{Job: j.name, RunID: runID, Now: s.now(), State: s.state}
	start := time.Now()
	s.logger.DebugContext(runCtx, "job started")

	err := s.invoke(runCtx, j, tick)

	elapsed := time.Since(start)
	s.state.recordRun(j.name, RunRecord{At: tick.Now, Duration: elapsed, Err: err})
	metrics.JobRunDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())

	if elapsed > j.interval {
		s.logger.WarnContext(runCtx, "job overran its interval", "duration", elapsed, "interval", j.interval)
	}

	var pe *panicError
	switch {
	case err == nil:
		metrics.JobRunsTotal.WithLabelValues(j.name, "ok").Inc()
		s.logger.DebugContext(runCtx, "job finished", "duration", elapsed)
	case errors.As(err, &pe):
		metrics.JobRunsTotal.WithLabelValues(j.name, "panic").Inc()
		s.logger.ErrorContext(runCtx, "job panicked", "panic", pe.value, "duration", elapsed)
	case errors.Is(err, domain.ErrStoreUnavailable):
		metrics.JobRunsTotal.WithLabelValues(j.name, "error").Inc()
		s.logger.WarnContext(runCtx, "store unavailable, tick skipped", "error", err, "duration", elapsed)
	default:
		metrics.JobRunsTotal.WithLabelValues(j.name, "error").Inc()
		s.logger.ErrorContext(runCtx, "job finished", "error", err, "duration", elapsed)
	}
	return err
}

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

func (s *Scheduler) invoke(ctx context.Context, j *job, tick Tick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return j.fn(ctx, tick)
}
