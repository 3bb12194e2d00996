package mockserver

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

var errRetry = errors.New("retry")

// retryFor calls do every delay until it succeeds, duration elapsed or ctx
// is done. do receives the time left. It reports whether do succeeded.
//
// With unlimited attempts retry.Do also returns nil once ctx is done.
func retryFor(ctx context.Context, do func(time.Duration) bool, delay, duration time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	met := false
	_ = retry.Do(func() error {
		if !do(duration - time.Since(start)) {
			return errRetry
		}
		met = true
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true))
	return met
}
