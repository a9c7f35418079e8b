package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/evanofslack/adguard-dns-sync/internal/metrics"
)

const (
	ReasonStartup       = "startup"
	ReasonConfigChanged = "config-changed"
	ReasonInterval      = "interval"
)

// Queue collects sync requests from any number of producers and hands them to a
// single consumer. Requests that arrive while one is already pending are merged.
type Queue struct {
	settle  time.Duration
	pending chan string
	now     chan string
	metrics *metrics.Metrics
}

func New(settle time.Duration, metrics *metrics.Metrics) *Queue {
	return &Queue{
		settle:  settle,
		pending: make(chan string, 1),
		now:     make(chan string, 1),
		metrics: metrics,
	}
}

// Fire requests a sync after the settle delay. It never blocks.
func (q *Queue) Fire(reason string) {
	q.metrics.IncTrigger(reason)
	select {
	case q.pending <- reason:
	default:
		slog.Debug("Sync already pending, coalescing trigger", "reason", reason)
	}
}

// FireNow requests a sync without waiting for the settle delay.
func (q *Queue) FireNow(reason string) {
	q.metrics.IncTrigger(reason)
	select {
	case q.now <- reason:
	default:
	}
}

// Run calls fn once per batch of triggers until ctx is done. Calls never overlap.
func (q *Queue) Run(ctx context.Context, fn func(ctx context.Context, reason string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-q.now:
			q.drain()
			fn(ctx, reason)
		case reason := <-q.pending:
			if !q.wait(ctx) {
				return ctx.Err()
			}
			fn(ctx, reason)
		}
	}
}

// wait sleeps for the settle delay, absorbing triggers that arrive meanwhile.
func (q *Queue) wait(ctx context.Context) bool {
	if q.settle <= 0 {
		return ctx.Err() == nil
	}
	slog.Debug("Waiting for changes to settle", "delay", q.settle)
	timer := time.NewTimer(q.settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-q.pending:
		case <-timer.C:
			q.drain()
			return true
		}
	}
}

// drain discards pending triggers that the upcoming run will cover.
func (q *Queue) drain() {
	select {
	case <-q.pending:
	default:
	}
}
