package behavior

import (
	"time"

	"github.com/device-control/dcc/internal/gpio"
	"github.com/device-control/dcc/internal/registry"
)

// Phase is one timed step of a program: drive the output to Level and
// hold it for Duration.
type Phase struct {
	Level    gpio.Level
	Duration time.Duration
}

// Program is an ordered sequence of phases. The cursor over it lives
// in Machine; the program itself is immutable once built.
type Program []Phase

// BuildProgram assembles the blink-then-hold pattern from a registry
// snapshot: BlinkCount fast on/off pairs followed by a long hold on.
// The output is left high after the hold; the runner rests, then
// rebuilds from a fresh snapshot.
func BuildProgram(snap registry.Snapshot) Program {
	prog := make(Program, 0, int(snap.BlinkCount)*2+1)
	for i := 0; i < int(snap.BlinkCount); i++ {
		prog = append(prog,
			Phase{Level: gpio.High, Duration: time.Duration(snap.FastOnMs) * time.Millisecond},
			Phase{Level: gpio.Low, Duration: time.Duration(snap.FastOffMs) * time.Millisecond},
		)
	}
	prog = append(prog, Phase{Level: gpio.High, Duration: time.Duration(snap.HoldOnMs) * time.Millisecond})
	return prog
}

// TotalDuration sums all phase durations.
func (p Program) TotalDuration() time.Duration {
	var total time.Duration
	for _, phase := range p {
		total += phase.Duration
	}
	return total
}
