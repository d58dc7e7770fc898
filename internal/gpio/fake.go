package gpio

import (
	"sync"
)

// Fake records output transitions for tests.
type Fake struct {
	mu          sync.Mutex
	pin         int
	configured  bool
	level       Level
	transitions []Level
}

// NewFake returns an unconfigured fake driver.
func NewFake() *Fake {
	return &Fake{pin: -1}
}

func (f *Fake) ConfigureOutput(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pin = pin
	f.configured = true
	f.level = Low
	return nil
}

func (f *Fake) SetLevel(level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
	f.transitions = append(f.transitions, level)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = false
	return nil
}

// Level returns the last driven level.
func (f *Fake) Level() Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Pin returns the configured pin, or -1.
func (f *Fake) Pin() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pin
}

// Transitions returns a copy of all SetLevel calls in order.
func (f *Fake) Transitions() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Level, len(f.transitions))
	copy(out, f.transitions)
	return out
}
