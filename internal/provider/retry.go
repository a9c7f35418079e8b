package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryForever runs op until it succeeds, waiting a fixed delay between attempts.
// It only gives up when ctx is done, returning the context error.
func RetryForever(ctx context.Context, name string, delay time.Duration, op func() error) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(delay), ctx)
	notify := func(err error, next time.Duration) {
		slog.Warn("Failed to connect or authenticate, retrying", "provider", name, "error", err, "retry_in", next)
	}
	return backoff.RetryNotify(op, b, notify)
}
