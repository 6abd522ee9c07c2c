//go:build linux

package device

import (
	"fmt"
	"log/slog"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is the GPIO character device used on Raspberry Pi boards.
const DefaultChip = "gpiochip0"

// NewGPIORelay requests pin on chip as an output driven low.
func NewGPIORelay(chip string, pin int, logger *slog.Logger) (*Relay, error) {
	if chip == "" {
		chip = DefaultChip
	}
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("device: open gpio chip: %w", err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("device: request relay pin %d: %w", pin, err)
	}

	return newRelay(line, c.Close, logger), nil
}
