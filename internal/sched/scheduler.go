// Package sched implements the deferred job scheduler: a single-threaded
// tick loop over an owned pending-job queue. Per-prediction validation jobs
// are one-shot at an absolute instant; maintenance jobs (directory re-scan,
// stale sweep) recur at a fixed interval. All job bodies run synchronously
// in the driver goroutine, so no two scheduled bodies ever execute
// concurrently.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/modtrack/internal/observability"
)

// Job is the body of a scheduled unit of work. A returned error is logged
// and counted; it never stops the loop.
type Job func(ctx context.Context) error

type job struct {
	name     string
	fn       Job
	oneShot  bool
	interval time.Duration // periodic jobs only
	nextRun  time.Time
}

// Scheduler owns the pending-job queue. One lock guards the queue; job
// bodies execute outside it.
type Scheduler struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	tick    time.Duration

	mu   sync.Mutex
	jobs []*job
}

// New creates a Scheduler ticking at the given interval on the given clock.
func New(tick time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		tick:    tick,
	}
}

// Every registers a periodic job. The first run happens one interval from
// now.
func (s *Scheduler) Every(name string, interval time.Duration, fn Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:     name,
		fn:       fn,
		interval: interval,
		nextRun:  s.clock.Now().Add(interval),
	})
	s.metrics.JobsPending.Set(float64(len(s.jobs)))
}

// At registers a one-shot job that fires on the first tick at or after when,
// then leaves the pending set. A time already in the past fires on the next
// tick.
func (s *Scheduler) At(name string, when time.Time, fn Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:    name,
		fn:      fn,
		oneShot: true,
		nextRun: when,
	})
	s.metrics.JobsPending.Set(float64(len(s.jobs)))
}

// Pending returns the number of jobs currently in the queue.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Run drives the tick loop until ctx is cancelled. A tick in progress
// finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick_interval", s.tick)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runPending(ctx)
		}
	}
}

// runPending executes every due job, synchronously, in registration order.
// One-shot jobs are removed from the queue before their body runs so they
// cannot fire twice even if the body fails.
func (s *Scheduler) runPending(ctx context.Context) {
	now := s.clock.Now()
	start := now

	due := s.takeDue(now)
	for _, j := range due {
		s.runJob(ctx, j)
	}

	if len(due) > 0 {
		s.metrics.TickDuration.Observe(s.clock.Since(start).Seconds())
	}
}

// takeDue collects due jobs under the lock: one-shots are dequeued,
// periodic jobs have their next run advanced.
func (s *Scheduler) takeDue(now time.Time) []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*job
	remaining := s.jobs[:0]
	for _, j := range s.jobs {
		if j.nextRun.After(now) {
			remaining = append(remaining, j)
			continue
		}
		due = append(due, j)
		if !j.oneShot {
			j.nextRun = now.Add(j.interval)
			remaining = append(remaining, j)
		}
	}
	s.jobs = remaining
	s.metrics.JobsPending.Set(float64(len(s.jobs)))
	return due
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.JobErrors.Inc()
			s.logger.Error("job panicked", "job", j.name, "panic", r)
		}
	}()

	if err := j.fn(ctx); err != nil {
		s.metrics.JobErrors.Inc()
		s.logger.Error("job failed", "job", j.name, "error", err)
	}
}
