// Package monitor samples host CPU load and reports when it crosses a
// threshold.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/jobs"
	"github.com/pramodsurya033/Insuredmine/metrics"
)

const (
	// DefaultThreshold is the usage percentage that counts as overload.
	DefaultThreshold = 70.0
	// DefaultInterval is the time between samples.
	DefaultInterval = 5 * time.Second
)

// Ticks is a snapshot of cumulative CPU time counters summed over all cores.
type Ticks struct {
	Idle  float64
	Total float64
}

// Sampler reads cumulative CPU counters.
type Sampler interface {
	Sample(ctx context.Context) (Ticks, error)
}

// CPUSampler reads per-core counters from the host.
type CPUSampler struct{}

// Sample sums the per-core counters. Idle includes iowait.
func (CPUSampler) Sample(ctx context.Context) (Ticks, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return Ticks{}, fmt.Errorf("monitor: read cpu times: %w", err)
	}

	var t Ticks
	for _, c := range times {
		idle := c.Idle + c.Iowait
		t.Idle += idle
		t.Total += c.User + c.Nice + c.System + idle + c.Irq + c.Softirq + c.Steal
	}
	return t, nil
}

// Usage is the busy percentage between two samples. It returns 0 when no
// time elapsed between them.
func Usage(prev, cur Ticks) float64 {
	total := cur.Total - prev.Total
	if total <= 0 {
		return 0
	}
	idle := cur.Idle - prev.Idle
	usage := 100 * (1 - idle/total)
	switch {
	case usage < 0:
		return 0
	case usage > 100:
		return 100
	}
	return usage
}

// Config holds configuration for the monitor.
type Config struct {
	Threshold float64
	Interval  time.Duration
}

// Monitor samples CPU usage on a schedule.
type Monitor struct {
	sampler Sampler
	config  Config
	logger  *zap.Logger
	runner  *jobs.Runner
}

// New builds a monitor. Zero config values take the defaults.
func New(sampler Sampler, config Config, logger *zap.Logger) *Monitor {
	if sampler == nil {
		sampler = CPUSampler{}
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	logger = logger.Named("cpu-monitor")
	return &Monitor{
		sampler: sampler,
		config:  config,
		logger:  logger,
		runner:  jobs.New("cpu-monitor", config.Interval, logger),
	}
}

// Start takes a baseline sample and then, every interval, computes usage
// since the previous sample. Every sample at or above the threshold is
// logged and passed to onOverload. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context, onOverload func(usage float64)) error {
	if m.runner.IsRunning() {
		m.logger.Info("cpu monitor already running")
		return nil
	}

	w := &window{}
	if prev, err := m.sampler.Sample(ctx); err != nil {
		m.logger.Warn("baseline sample failed", zap.Error(err))
	} else {
		w.prev, w.ok = prev, true
	}

	m.logger.Info("starting cpu monitor",
		zap.Float64("threshold", m.config.Threshold),
		zap.Duration("interval", m.config.Interval))

	return m.runner.Start(ctx, func(ctx context.Context) {
		m.sample(ctx, w, onOverload)
	})
}

// Stop halts sampling and waits for a sample in progress. Stopping a stopped
// monitor is a no-op.
func (m *Monitor) Stop() {
	_ = m.runner.Stop(context.Background())
}

// IsRunning reports whether the monitor is sampling.
func (m *Monitor) IsRunning() bool {
	return m.runner.IsRunning()
}

// window carries the previous sample between runs. Runs never overlap.
type window struct {
	prev Ticks
	ok   bool
}

func (m *Monitor) sample(ctx context.Context, w *window, onOverload func(float64)) {
	cur, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("cpu sample failed", zap.Error(err))
		return
	}
	if !w.ok {
		w.prev, w.ok = cur, true
		return
	}

	usage := Usage(w.prev, cur)
	w.prev = cur
	metrics.CPUUsagePercent.Set(usage)

	if usage >= m.config.Threshold {
		metrics.CPUOverloadTotal.Inc()
		m.logger.Warn("cpu usage above threshold",
			zap.Float64("usage", usage),
			zap.Float64("threshold", m.config.Threshold))
		if onOverload != nil {
			onOverload(usage)
		}
	}
}
