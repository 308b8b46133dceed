package retry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// delayRecorder is a slog handler that collects the backoff delay attribute
// logged before each sleep.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (h *delayRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *delayRecorder) Handle(_ context.Context, record slog.Record) error {
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "delay" {
			h.mu.Lock()
			h.delays = append(h.delays, attr.Value.Duration())
			h.mu.Unlock()
		}
		return true
	})
	return nil
}

func (h *delayRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *delayRecorder) WithGroup(string) slog.Handler      { return h }

func testPolicy() Policy {
	return Policy{
		Initial:  time.Millisecond,
		Factor:   2,
		Max:      5 * time.Millisecond,
		Attempts: 3,
	}
}

func alwaysTransient(error) bool { return true }

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	value, err := Do(context.Background(), nil, testPolicy(), alwaysTransient, func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", value)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	value, err := Do(context.Background(), nil, testPolicy(), alwaysTransient, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})

	require.NoError(t, err)
	require.Equal(t, 7, value)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	boom := errors.New("still down")
	calls := 0
	_, err := Do(context.Background(), nil, testPolicy(), alwaysTransient, func() (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 4, calls)
}

func TestDoDelaySeriesIsCappedExponential(t *testing.T) {
	recorder := &delayRecorder{}
	logger := slog.New(recorder)
	policy := Policy{
		Initial:  time.Millisecond,
		Factor:   2,
		Max:      4 * time.Millisecond,
		Attempts: 4,
	}

	calls := 0
	_, err := Do(context.Background(), logger, policy, alwaysTransient, func() (int, error) {
		calls++
		return 0, errors.New("transient")
	})

	require.Error(t, err)
	require.Equal(t, 5, calls)
	// No jitter: exactly Initial, Initial*Factor, ... clamped at Max.
	require.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, recorder.delays)
}

func TestDoPermanentErrorShortCircuits(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), nil, testPolicy(), func(error) bool { return false }, func() (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, nil, testPolicy(), alwaysTransient, func() (int, error) {
		return 0, errors.New("transient")
	})

	require.Error(t, err)
}
