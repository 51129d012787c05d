// Package jobs runs one periodic task on a gocron scheduler. Runs never
// overlap: a run that comes due while the previous one is still going is
// skipped and rescheduled.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Runner owns the scheduler of a single named duration job.
type Runner struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	current *run
	last    *run
}

type run struct {
	scheduler gocron.Scheduler
	once      sync.Once
	done      chan struct{}
}

// New builds a runner that fires every interval once started.
func New(name string, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		logger:   logger.With(zap.String("job", name)),
	}
}

// Start schedules task every interval until Stop is called or ctx ends. The
// first run happens one interval after Start. Starting a running runner is a
// no-op.
func (r *Runner) Start(ctx context.Context, task func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.logger.Info("job already running")
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("jobs: %s: new scheduler: %w", r.name, err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { task(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(r.name),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("jobs: %s: register: %w", r.name, err)
	}

	cur := &run{scheduler: scheduler, done: make(chan struct{})}
	r.current = cur
	scheduler.Start()
	go r.watch(ctx, cur)

	r.logger.Info("job started", zap.Duration("interval", r.interval))
	return nil
}

// Stop shuts the scheduler down and waits for a run in progress, or for ctx.
// A runner that already stopped because its start context ended is still
// waited for. Stopping a stopped runner is a no-op.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cur := r.current
	if cur == nil {
		cur = r.last
	}
	r.current = nil
	r.last = cur
	r.mu.Unlock()

	if cur == nil {
		return nil
	}

	select {
	case <-cur.shutdown(r.logger):
		return nil
	case <-ctx.Done():
		r.logger.Warn("job shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the job is scheduled.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func (r *Runner) watch(ctx context.Context, cur *run) {
	select {
	case <-ctx.Done():
		r.mu.Lock()
		if r.current == cur {
			r.current = nil
			r.last = cur
		}
		r.mu.Unlock()
		cur.shutdown(r.logger)
	case <-cur.done:
	}
}

func (r *run) shutdown(logger *zap.Logger) <-chan struct{} {
	r.once.Do(func() {
		go func() {
			defer close(r.done)
			if err := r.scheduler.Shutdown(); err != nil {
				logger.Warn("scheduler shutdown", zap.Error(err))
				return
			}
			logger.Info("job stopped")
		}()
	})
	return r.done
}
