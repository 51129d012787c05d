package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/jobs"
	"github.com/pramodsurya033/Insuredmine/metrics"
)

// ErrSweepInProgress is returned when a sweep starts while another runs.
var ErrSweepInProgress = errors.New("schedule: sweep already in progress")

const (
	// DefaultInterval is the default time between sweeps.
	DefaultInterval = 60 * time.Second
	// DefaultBatchSize bounds the messages handled by one sweep.
	DefaultBatchSize = 500
)

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Dispatcher periodically delivers due messages and marks them sent.
type Dispatcher struct {
	repo   Repository
	sender Sender
	config DispatcherConfig
	now    func() time.Time
	tracer trace.Tracer
	logger *zap.Logger

	sweeping atomic.Bool
	runner   *jobs.Runner
}

// NewDispatcher builds a dispatcher. Zero config values take the defaults.
func NewDispatcher(repo Repository, sender Sender, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	logger = logger.Named("dispatcher")
	return &Dispatcher{
		repo:   repo,
		sender: sender,
		config: config,
		now:    time.Now,
		tracer: otel.Tracer("github.com/pramodsurya033/Insuredmine/schedule"),
		logger: logger,
		runner: jobs.New("schedule-dispatch", config.Interval, logger),
	}
}

// WithClock overrides the clock (useful for tests).
func (d *Dispatcher) WithClock(fn func() time.Time) *Dispatcher {
	if fn != nil {
		d.now = fn
	}
	return d
}

// Sweep delivers every due pending message and marks it sent. A failure on
// one message is logged and the message stays pending for the next sweep.
// Only one sweep runs at a time; a concurrent call returns ErrSweepInProgress.
func (d *Dispatcher) Sweep(ctx context.Context) (SweepResult, error) {
	if !d.sweeping.CompareAndSwap(false, true) {
		metrics.SweepsSkippedTotal.Inc()
		return SweepResult{}, ErrSweepInProgress
	}
	defer d.sweeping.Store(false)

	ctx, span := d.tracer.Start(ctx, "schedule.sweep")
	defer span.End()

	due, err := d.repo.ListDue(ctx, d.now(), d.config.BatchSize)
	if err != nil {
		span.RecordError(err)
		return SweepResult{}, fmt.Errorf("schedule: sweep: %w", err)
	}

	result := SweepResult{Due: len(due)}
	for _, msg := range due {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("schedule: sweep: %w", err)
		}

		if err := d.dispatch(ctx, msg); err != nil {
			result.Failed++
			metrics.MessagesDispatchedTotal.WithLabelValues("failed").Inc()
			d.logger.Error("dispatch failed", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		result.Dispatched++
		metrics.MessagesDispatchedTotal.WithLabelValues("sent").Inc()
	}

	span.SetAttributes(
		attribute.Int("due", result.Due),
		attribute.Int("dispatched", result.Dispatched),
		attribute.Int("failed", result.Failed),
	)
	if result.Due > 0 {
		d.logger.Info("sweep complete",
			zap.Int("due", result.Due),
			zap.Int("dispatched", result.Dispatched),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) error {
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := d.repo.MarkSent(ctx, msg.ID, d.now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// Start sweeps every configured interval until Stop is called or ctx ends.
// Sweeps never overlap: a tick that lands during a slow sweep is dropped.
// Starting a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.runner.Start(ctx, d.tick)
}

// Stop halts the schedule and waits for an in-flight sweep, or for ctx.
// Stopping a stopped dispatcher is a no-op.
func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.runner.Stop(ctx)
}

// IsRunning reports whether sweeps are scheduled.
func (d *Dispatcher) IsRunning() bool {
	return d.runner.IsRunning()
}

func (d *Dispatcher) tick(ctx context.Context) {
	_, err := d.Sweep(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSweepInProgress):
		d.logger.Debug("previous sweep still running, tick dropped")
	case ctx.Err() != nil:
	default:
		d.logger.Error("sweep failed", zap.Error(err))
	}
}
