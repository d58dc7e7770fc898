package behavior

import (
	"time"

	"github.com/device-control/dcc/internal/gpio"
)

// Machine is the cursor over one program iteration. It holds no
// clock of its own: the scheduler advances it by elapsed wall time.
type Machine struct {
	prog      Program
	cursor    int
	remaining time.Duration
	done      bool
}

// NewMachine starts a machine at phase 0. An empty program is
// immediately done.
func NewMachine(prog Program) *Machine {
	m := &Machine{prog: prog}
	if len(prog) == 0 {
		m.done = true
		return m
	}
	m.remaining = prog[0].Duration
	return m
}

// Level returns the output level the current phase calls for. After
// completion it is the final phase's level, so the output is left
// where the program ended.
func (m *Machine) Level() gpio.Level {
	if len(m.prog) == 0 {
		return gpio.Low
	}
	if m.done {
		return m.prog[len(m.prog)-1].Level
	}
	return m.prog[m.cursor].Level
}

// Done reports whether the iteration has run all phases.
func (m *Machine) Done() bool {
	return m.done
}

// Phase returns the current cursor position.
func (m *Machine) Phase() int {
	return m.cursor
}

// Advance moves the machine forward by elapsed time, crossing phase
// boundaries as needed.
func (m *Machine) Advance(elapsed time.Duration) {
	for elapsed > 0 && !m.done {
		if elapsed < m.remaining {
			m.remaining -= elapsed
			return
		}
		elapsed -= m.remaining
		m.cursor++
		if m.cursor >= len(m.prog) {
			m.done = true
			return
		}
		m.remaining = m.prog[m.cursor].Duration
	}
}
