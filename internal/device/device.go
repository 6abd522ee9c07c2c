// Package device pushes "ring now" requests to the siren controller.
//
// Two transports exist: an HTTP client for controllers on the network and a
// GPIO relay for a siren wired to the host. Neither retries; callers bound
// each call with a context deadline.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDuration is returned for non-positive ring durations.
var ErrInvalidDuration = errors.New("device: ring duration must be positive")

// Ringer triggers the siren for the given duration.
type Ringer interface {
	Ring(ctx context.Context, duration time.Duration, source string) error
}

// Fanout rings every configured ringer in order and joins their errors.
type Fanout []Ringer

// Ring calls every ringer, even when an earlier one fails.
func (f Fanout) Ring(ctx context.Context, duration time.Duration, source string) error {
	var errs []error
	for i, ringer := range f {
		if err := ringer.Ring(ctx, duration, source); err != nil {
			errs = append(errs, fmt.Errorf("ringer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func checkDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	return nil
}
