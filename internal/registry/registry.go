package registry

import (
	"sync"

	"github.com/device-control/dcc/internal/config"
)

// Variable identifies one tunable parameter. The enumeration is
// exhaustive: adding a variable means adding a constant, a name, and
// a setter arm.
type Variable int

const (
	VarBlinkCount Variable = iota
	VarFastOnMs
	VarFastOffMs
	VarHoldOnMs
	VarLedPin

	numVariables
)

// Name returns the wire name used by the control protocol.
func (v Variable) Name() string {
	switch v {
	case VarBlinkCount:
		return "kBlinkCount"
	case VarFastOnMs:
		return "kFastOnMs"
	case VarFastOffMs:
		return "kFastOffMs"
	case VarHoldOnMs:
		return "kHoldOnMs"
	case VarLedPin:
		return "kLedPin"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of all variable values, read by the
// behavior task at the start of each full program iteration.
type Snapshot struct {
	BlinkCount uint8
	FastOnMs   uint32
	FastOffMs  uint32
	HoldOnMs   uint32
	LedPin     int
}

// Registry holds the current variable values. Entries are created at
// startup and never added or removed while running.
type Registry struct {
	mu     sync.RWMutex
	values Snapshot
}

// New seeds a registry from the behavior configuration.
func New(cfg config.BehaviorConfig, ledPin int) *Registry {
	return &Registry{
		values: Snapshot{
			BlinkCount: cfg.BlinkCount,
			FastOnMs:   cfg.FastOnMs,
			FastOffMs:  cfg.FastOffMs,
			HoldOnMs:   cfg.HoldOnMs,
			LedPin:     ledPin,
		},
	}
}

// Set parses raw and stores it under the named variable. It returns
// false, leaving the entry untouched, when the name is unknown.
// Setting the same name twice leaves only the second value.
func (r *Registry) Set(name, raw string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch v {
	case VarBlinkCount:
		r.values.BlinkCount = uint8(clamp(parseIntPrefix(raw), 0, 255))
	case VarFastOnMs:
		r.values.FastOnMs = uint32(clamp(parseIntPrefix(raw), 0, 1<<32-1))
	case VarFastOffMs:
		r.values.FastOffMs = uint32(clamp(parseIntPrefix(raw), 0, 1<<32-1))
	case VarHoldOnMs:
		r.values.HoldOnMs = uint32(clamp(parseIntPrefix(raw), 0, 1<<32-1))
	case VarLedPin:
		r.values.LedPin = int(clamp(parseIntPrefix(raw), 0, 1<<31-1))
	}
	return true
}

// Snapshot returns a copy of all current values.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values
}

// Names lists the wire names of every variable, in declaration order.
func Names() []string {
	names := make([]string, 0, numVariables)
	for v := Variable(0); v < numVariables; v++ {
		names = append(names, v.Name())
	}
	return names
}

func lookup(name string) (Variable, bool) {
	for v := Variable(0); v < numVariables; v++ {
		if v.Name() == name {
			return v, true
		}
	}
	return 0, false
}

// parseIntPrefix parses an optionally signed leading integer, ignoring
// any trailing text. No digits yields 0. Accumulation saturates at the
// int64 limits.
func parseIntPrefix(s string) int64 {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int64(c - '0')
		if n > (1<<63-1-d)/10 {
			if neg {
				return -1 << 63
			}
			return 1<<63 - 1
		}
		n = n*10 + d
	}

	if neg {
		return -n
	}
	return n
}

func clamp(n, lo, hi int64) int64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
