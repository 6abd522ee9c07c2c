// Package scheduler runs the periodic evaluation that stores scheduled rings
// independently of device polling.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval keeps at least two evaluations inside every minute.
const DefaultInterval = 20 * time.Second

// Evaluator stores a ring when the current minute matches a schedule.
type Evaluator interface {
	TickScheduled(ctx context.Context) (bool, error)
}

// Ticker drives an Evaluator on a fixed period.
type Ticker struct {
	evaluator Evaluator
	interval  time.Duration
	logger    *slog.Logger
}

// NewTicker constructs a Ticker. A non-positive interval selects DefaultInterval.
func NewTicker(evaluator Evaluator, interval time.Duration, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		evaluator: evaluator,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Interval returns the evaluation period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Run evaluates once immediately and then on every period until ctx is done.
// Evaluation errors are logged and never stop the loop.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.InfoContext(ctx, "scheduler started", "interval", t.interval.String())
	t.loop(ctx, ticker.C)
	t.logger.InfoContext(ctx, "scheduler stopped")
	return nil
}

func (t *Ticker) loop(ctx context.Context, tick <-chan time.Time) {
	t.evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			t.evaluate(ctx)
		}
	}
}

func (t *Ticker) evaluate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	issued, err := t.evaluator.TickScheduled(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "scheduled evaluation failed", "error", err)
		return
	}
	if issued {
		t.logger.DebugContext(ctx, "scheduled ring stored")
	}
}
