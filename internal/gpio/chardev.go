package gpio

import (
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// ChardevDriver drives an output line through the Linux GPIO
// character device.
type ChardevDriver struct {
	mu   sync.Mutex
	chip *gpiod.Chip
	line *gpiod.Line
	pin  int
}

// NewChardevDriver opens the named GPIO chip (e.g. "gpiochip0").
func NewChardevDriver(chipName string) (*ChardevDriver, error) {
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
	}
	return &ChardevDriver{chip: chip, pin: -1}, nil
}

// ConfigureOutput requests the pin as an output line, initially low.
func (d *ChardevDriver) ConfigureOutput(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.line != nil && d.pin == pin {
		return nil
	}
	if d.line != nil {
		if err := d.line.Close(); err != nil {
			return fmt.Errorf("failed to release pin %d: %w", d.pin, err)
		}
		d.line = nil
	}

	line, err := d.chip.RequestLine(pin, gpiod.AsOutput(0))
	if err != nil {
		return fmt.Errorf("failed to request pin %d as output: %w", pin, err)
	}
	d.line = line
	d.pin = pin
	return nil
}

// SetLevel drives the configured output line.
func (d *ChardevDriver) SetLevel(level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.line == nil {
		return fmt.Errorf("no output pin configured")
	}
	value := 0
	if level == High {
		value = 1
	}
	if err := d.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set pin %d: %w", d.pin, err)
	}
	return nil
}

// Close releases the line and chip.
func (d *ChardevDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.line != nil {
		if err := d.line.Close(); err != nil {
			return err
		}
		d.line = nil
	}
	return d.chip.Close()
}
