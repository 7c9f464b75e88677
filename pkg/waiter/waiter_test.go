package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/waiter/waitertest"
)

// countingProber reports present once it has been polled more than missing times.
type countingProber struct {
	missing int
	calls   int
	err     error
}

func (p *countingProber) Present(_ context.Context, _ string) (bool, error) {
	p.calls++
	if p.err != nil {
		return false, p.err
	}
	return p.calls > p.missing, nil
}

func TestExists_ImmediatelyPresent(t *testing.T) {
	clock := waitertest.NewClock()
	w := New(clock)
	p := &countingProber{}

	ok, err := w.Exists(context.Background(), p, "xpath=//a", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, clock.Sleeps())
}

func TestExists_AppearsAfterPolls(t *testing.T) {
	clock := waitertest.NewClock()
	w := New(clock, WithInterval(time.Second))
	p := &countingProber{missing: 3}

	ok, err := w.Exists(context.Background(), p, "xpath=//a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.Sleeps())
}

func TestExists_TimeoutReturnsFalse(t *testing.T) {
	clock := waitertest.NewClock()
	w := New(clock, WithInterval(3*time.Second))
	p := &countingProber{missing: 1000}

	start := clock.Now()
	ok, err := w.Exists(context.Background(), p, "xpath=//a", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// 3s + 3s + 3s + 1s: the last sleep is clipped to the deadline
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second, time.Second}, clock.Sleeps())
	assert.Equal(t, 10*time.Second, clock.Now().Sub(start))
	assert.Equal(t, 5, p.calls)
}

func TestExists_DefaultTimeout(t *testing.T) {
	clock := waitertest.NewClock()
	w := New(clock)
	p := &countingProber{missing: 1000}

	start := clock.Now()
	ok, err := w.Exists(context.Background(), p, "xpath=//a", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultTimeout, clock.Now().Sub(start))
}

func TestExists_ProberErrorPropagates(t *testing.T) {
	w := New(waitertest.NewClock())
	boom := errors.New("target closed")

	ok, err := w.Exists(context.Background(), &countingProber{err: boom}, "xpath=//a", 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestExists_ContextCancelled(t *testing.T) {
	w := New(waitertest.NewClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := w.Exists(ctx, &countingProber{missing: 5}, "xpath=//a", 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequire_Present(t *testing.T) {
	w := New(waitertest.NewClock())
	err := w.Require(context.Background(), &countingProber{missing: 2}, "xpath=//a", 0)
	assert.NoError(t, err)
}

func TestRequire_TimeoutFailsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := New(waitertest.NewClock(), WithLogger(logging.FromZap("waiter", zap.New(core))))

	err := w.Require(context.Background(), &countingProber{missing: 1000}, "xpath=//*[text()='Login']", time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimeout))
	assert.Contains(t, err.Error(), "xpath=//*[text()='Login']")

	errorsLogged := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorsLogged, 1)
	assert.Contains(t, errorsLogged[0].Message, "xpath=//*[text()='Login']")
}

func TestRealClock_SleepHonoursContext(t *testing.T) {
	clock := RealClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, clock.Sleep(context.Background(), time.Millisecond))
}
