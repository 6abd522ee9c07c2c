//go:build !linux

package device

import (
	"errors"
	"log/slog"
)

// DefaultChip is the GPIO character device used on Raspberry Pi boards.
const DefaultChip = "gpiochip0"

// NewGPIORelay is not available on non-Linux platforms.
func NewGPIORelay(chip string, pin int, logger *slog.Logger) (*Relay, error) {
	return nil, errors.New("device: gpio relay not supported on this platform (requires Linux)")
}
