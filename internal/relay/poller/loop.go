// Package poller drives the fetch-transform-dispatch cadence.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetrelay/internal/pkg/metrics"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// Worker performs one cycle of work.
type Worker interface {
	WorkCycle(ctx context.Context) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) WorkCycle(ctx context.Context) error { return f(ctx) }

// CycleError tags a cycle failure with its category.
type CycleError struct {
	Kind string
	Err  error
}

func (e *CycleError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *CycleError) Unwrap() error { return e.Err }

// Loop runs a Worker at a fixed interval. Cycles never overlap and are never
// skipped: a cycle that overruns the interval is followed immediately by the
// next one.
type Loop struct {
	worker   Worker
	interval time.Duration
	clock    clock.Clock
	logger   log.Logger

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	cycles atomic.Int64
}

// NewLoop returns a Loop. A nil clock means the real wall clock.
func NewLoop(worker Worker, interval time.Duration, clk clock.Clock, logger log.Logger) *Loop {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = log.WithName("poller")
	}
	return &Loop{
		worker:   worker,
		interval: interval,
		clock:    clk,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Delay is the pause before the next cycle: what is left of interval after a
// cycle that took elapsed, never negative.
func Delay(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// RequestStop asks the loop to exit once the in-flight cycle completes. It is
// safe to call from any goroutine, any number of times.
func (l *Loop) RequestStop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.stopCh)
	})
}

// Stopped reports whether a stop was requested.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Cycles returns how many cycles have completed.
func (l *Loop) Cycles() int64 {
	return l.cycles.Load()
}

// Run executes cycles until a stop is requested or ctx is done. Cancelling
// ctx does not interrupt the in-flight cycle. With continuous unset exactly
// one cycle runs.
func (l *Loop) Run(ctx context.Context, continuous bool) error {
	l.logger.Info("Polling loop started", "interval", l.interval, "continuous", continuous)
	defer l.logger.Info("Polling loop stopped", "cycles", l.cycles.Load())

	cycleCtx := context.WithoutCancel(ctx)
	for {
		elapsed := l.runCycle(cycleCtx)

		if !continuous || l.stopped.Load() || ctx.Err() != nil {
			return nil
		}

		delay := Delay(l.interval, elapsed)
		l.logger.Debug("Cycle completed", "elapsed", elapsed, "delay", delay)
		if delay == 0 {
			continue
		}

		t := l.clock.NewTimer(delay)
		select {
		case <-t.C():
		case <-l.stopCh:
			t.Stop()
			return nil
		case <-ctx.Done():
			t.Stop()
			return nil
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) time.Duration {
	start := l.clock.Now()
	err := l.worker.WorkCycle(ctx)
	elapsed := l.clock.Since(start)

	l.cycles.Add(1)
	metrics.CycleDuration.Observe(elapsed.Seconds())

	if err != nil {
		kind := "unknown"
		var ce *CycleError
		if errors.As(err, &ce) {
			kind = ce.Kind
		}
		metrics.CycleFailuresTotal.WithLabelValues(kind).Inc()
		l.logger.Error(err, "Cycle failed", "kind", kind, "elapsed", elapsed)
	}
	return elapsed
}
