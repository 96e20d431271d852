package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/pkg/clock"
)

var errBoom = errors.New("boom")

func newPolicy(clk clock.Clock) Policy {
	return Policy{
		MaxAttempts:    3,
		Delay:          Linear(2*time.Second, 0),
		RateLimitDelay: Linear(4*time.Second, 0),
		Clock:          clk,
	}
}

func TestLinearBackoff(t *testing.T) {
	b := Linear(2*time.Second, 5*time.Second)
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 4*time.Second, b(2))
	assert.Equal(t, 5*time.Second, b(3))
	assert.Equal(t, 2*time.Second, b(0))
}

func TestExponentialBackoffCapped(t *testing.T) {
	b := Exponential(5*time.Second, time.Minute)
	got := []time.Duration{b(1), b(2), b(3), b(4), b(5), b(6)}
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute,
	}, got)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0

	err := newPolicy(fake).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, fake.Sleeps())
}

func TestDoExhaustsAttempts(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0

	err := newPolicy(fake).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Len(t, fake.Sleeps(), 2)
}

func TestDoRateLimitedBacksOffLonger(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))

	_ = newPolicy(fake).Do(context.Background(), func(ctx context.Context, attempt int) error {
		return MarkRateLimited(errBoom)
	})

	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, fake.Sleeps())
}

func TestDoTerminalStopsImmediately(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0

	err := newPolicy(fake).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return MarkTerminal(errBoom)
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Terminal, Classify(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, fake.Sleeps())
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newPolicy(clock.Real()).Do(ctx, func(ctx context.Context, attempt int) error {
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Transient, Classify(errBoom))
	assert.Equal(t, RateLimited, Classify(MarkRateLimited(errBoom)))
	assert.Nil(t, MarkTerminal(nil))
}
