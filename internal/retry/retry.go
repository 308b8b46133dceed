// Package retry wraps transient-failure-prone operations in a bounded
// exponential backoff. Delays start at Policy.Initial, multiply by
// Policy.Factor per retry, and are clamped to Policy.Max; there is no jitter,
// so a given policy always produces the same delay series.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the retry loop. Attempts counts retries after the initial
// attempt, so Attempts=3 allows four executions in total.
type Policy struct {
	Initial  time.Duration
	Factor   float64
	Max      time.Duration
	Attempts int
}

// Do executes op, retrying with exponential backoff while transient reports
// the returned error as recoverable. Non-transient errors propagate
// immediately; once the attempt budget is exhausted the last error propagates
// unmodified. Each failed attempt is logged before the executor sleeps.
func Do[T any](ctx context.Context, logger *slog.Logger, policy Policy, transient func(error) bool, op func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.Initial
	expo.Multiplier = policy.Factor
	expo.MaxInterval = policy.Max
	expo.RandomizationFactor = 0

	attempt := func() (T, error) {
		value, err := op()
		if err != nil && transient != nil && !transient(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	notify := func(err error, delay time.Duration) {
		if logger != nil {
			logger.Error("transient failure, backing off",
				slog.Any("error", err),
				slog.Duration("delay", delay))
		}
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(policy.Attempts+1)),
		backoff.WithNotify(notify))
}
