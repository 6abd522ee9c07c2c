package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrRelayClosed is returned when ringing a relay after Close.
var ErrRelayClosed = errors.New("device: relay closed")

type outputLine interface {
	SetValue(value int) error
	Close() error
}

// Relay drives a siren through a single output line. The line is held high
// for the ring duration; a new ring while one is sounding extends it.
type Relay struct {
	mu      sync.Mutex
	line    outputLine
	release func() error
	timer   *time.Timer
	closed  bool
	logger  *slog.Logger
}

func newRelay(line outputLine, release func() error, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{line: line, release: release, logger: logger.With("component", "relay")}
}

// Ring energises the relay and schedules it off after duration.
func (r *Relay) Ring(ctx context.Context, duration time.Duration, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDuration(duration); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRelayClosed
	}
	if err := r.line.SetValue(1); err != nil {
		return fmt.Errorf("device: energise relay: %w", err)
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(duration, r.deenergise)
	return nil
}

func (r *Relay) deenergise() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if err := r.line.SetValue(0); err != nil {
		r.logger.Error("failed to release relay", "error", err)
	}
}

// Close switches the relay off and releases the line.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}

	var errs []error
	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("release relay: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if r.release != nil {
		if err := r.release(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("device: close relay: %w", errors.Join(errs...))
	}
	return nil
}
