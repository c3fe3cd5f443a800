package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/fleetrelay/internal/pkg/metrics"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDelay(t *testing.T) {
	cases := []struct {
		interval, elapsed, want time.Duration
	}{
		{time.Second, 200 * time.Millisecond, 800 * time.Millisecond},
		{time.Second, 1500 * time.Millisecond, 0},
		{time.Second, time.Second, 0},
		{5 * time.Second, 2300 * time.Millisecond, 2700 * time.Millisecond},
		{time.Second, 0, time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Delay(c.interval, c.elapsed), "interval=%v elapsed=%v", c.interval, c.elapsed)
	}
}

// cycleRecorder steps the fake clock by work on every cycle and stops the
// loop after stopAfter cycles.
type cycleRecorder struct {
	mu        sync.Mutex
	clk       *clocktesting.FakeClock
	work      time.Duration
	stopAfter int
	loop      *Loop
	starts    []time.Time
}

func (r *cycleRecorder) WorkCycle(context.Context) error {
	r.mu.Lock()
	r.starts = append(r.starts, r.clk.Now())
	n := len(r.starts)
	r.mu.Unlock()

	r.clk.Step(r.work)
	if n >= r.stopAfter {
		r.loop.RequestStop()
	}
	return nil
}

func (r *cycleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

func TestLoopSleepsRemainder(t *testing.T) {
	clk := clocktesting.NewFakeClock(epoch)
	rec := &cycleRecorder{clk: clk, work: 200 * time.Millisecond, stopAfter: 2}
	rec.loop = NewLoop(rec, time.Second, clk, nil)

	done := make(chan error, 1)
	go func() { done <- rec.loop.Run(context.Background(), true) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, rec.count())

	clk.Step(799 * time.Millisecond)
	assert.True(t, clk.HasWaiters())
	assert.Equal(t, 1, rec.count())

	clk.Step(time.Millisecond)
	require.NoError(t, <-done)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, epoch.Add(time.Second), rec.starts[1])
}

func TestLoopOverrunDoesNotSleep(t *testing.T) {
	clk := clocktesting.NewFakeClock(epoch)
	rec := &cycleRecorder{clk: clk, work: 1500 * time.Millisecond, stopAfter: 3}
	rec.loop = NewLoop(rec, time.Second, clk, nil)

	require.NoError(t, rec.loop.Run(context.Background(), true))

	require.Equal(t, 3, rec.count())
	assert.Equal(t, epoch.Add(1500*time.Millisecond), rec.starts[1])
	assert.Equal(t, epoch.Add(3000*time.Millisecond), rec.starts[2])
	assert.False(t, clk.HasWaiters())
}

func TestLoopSingleCycle(t *testing.T) {
	clk := clocktesting.NewFakeClock(epoch)
	rec := &cycleRecorder{clk: clk, work: 10 * time.Millisecond, stopAfter: 100}
	rec.loop = NewLoop(rec, time.Second, clk, nil)

	require.NoError(t, rec.loop.Run(context.Background(), false))
	assert.Equal(t, 1, rec.count())
	assert.EqualValues(t, 1, rec.loop.Cycles())
}

func TestLoopStopLetsCycleFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := false

	var loop *Loop
	loop = NewLoop(WorkerFunc(func(ctx context.Context) error {
		close(started)
		<-release
		assert.NoError(t, ctx.Err())
		finished = true
		return nil
	}), time.Second, clocktesting.NewFakeClock(epoch), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx, true) }()

	<-started
	loop.RequestStop()
	cancel()
	loop.RequestStop()

	select {
	case <-done:
		t.Fatal("loop exited before the in-flight cycle completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.True(t, finished)
	assert.EqualValues(t, 1, loop.Cycles())
	assert.True(t, loop.Stopped())
}

func TestLoopStopInterruptsSleep(t *testing.T) {
	clk := clocktesting.NewFakeClock(epoch)
	loop := NewLoop(WorkerFunc(func(context.Context) error { return nil }), time.Minute, clk, nil)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), true) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	loop.RequestStop()
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, loop.Cycles())
}

func TestLoopSurvivesFailedCycles(t *testing.T) {
	clk := clocktesting.NewFakeClock(epoch)
	before := testutil.ToFloat64(metrics.CycleFailuresTotal.WithLabelValues("fetch"))
	unknown := testutil.ToFloat64(metrics.CycleFailuresTotal.WithLabelValues("unknown"))

	var loop *Loop
	n := 0
	loop = NewLoop(WorkerFunc(func(context.Context) error {
		n++
		switch n {
		case 1:
			return &CycleError{Kind: "fetch", Err: errors.New("feed unreachable")}
		case 2:
			return errors.New("boom")
		}
		loop.RequestStop()
		return nil
	}), 0, clk, nil)

	require.NoError(t, loop.Run(context.Background(), true))
	assert.Equal(t, 3, n)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CycleFailuresTotal.WithLabelValues("fetch")))
	assert.Equal(t, unknown+1, testutil.ToFloat64(metrics.CycleFailuresTotal.WithLabelValues("unknown")))
}
