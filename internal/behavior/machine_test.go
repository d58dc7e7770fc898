package behavior

import (
	"testing"
	"time"

	"github.com/device-control/dcc/internal/gpio"
	"github.com/device-control/dcc/internal/registry"
)

func TestBuildProgramShape(t *testing.T) {
	snap := registry.Snapshot{
		BlinkCount: 7,
		FastOnMs:   80,
		FastOffMs:  80,
		HoldOnMs:   5000,
	}
	prog := BuildProgram(snap)

	if len(prog) != 15 {
		t.Fatalf("expected 7 on/off pairs + hold = 15 phases, got %d", len(prog))
	}
	if prog[0].Level != gpio.High || prog[0].Duration != 80*time.Millisecond {
		t.Errorf("phase 0 should be high for 80ms, got %v/%v", prog[0].Level, prog[0].Duration)
	}
	if prog[1].Level != gpio.Low {
		t.Error("phase 1 should be low")
	}
	hold := prog[len(prog)-1]
	if hold.Level != gpio.High || hold.Duration != 5*time.Second {
		t.Errorf("final phase should hold high 5s, got %v/%v", hold.Level, hold.Duration)
	}
	if want := 7*(80+80)*time.Millisecond + 5*time.Second; prog.TotalDuration() != want {
		t.Errorf("total duration: got %v, want %v", prog.TotalDuration(), want)
	}
}

func TestMachineAdvancesAcrossPhases(t *testing.T) {
	prog := Program{
		{Level: gpio.High, Duration: 10 * time.Millisecond},
		{Level: gpio.Low, Duration: 10 * time.Millisecond},
		{Level: gpio.High, Duration: 20 * time.Millisecond},
	}
	m := NewMachine(prog)

	if m.Level() != gpio.High || m.Phase() != 0 {
		t.Fatal("machine should start at phase 0 high")
	}

	m.Advance(5 * time.Millisecond)
	if m.Phase() != 0 {
		t.Error("5ms into a 10ms phase should not advance")
	}

	m.Advance(5 * time.Millisecond)
	if m.Phase() != 1 || m.Level() != gpio.Low {
		t.Errorf("expected phase 1 low, got phase %d level %v", m.Phase(), m.Level())
	}

	// A single large step crosses multiple boundaries.
	m.Advance(25 * time.Millisecond)
	if m.Phase() != 2 {
		t.Errorf("expected phase 2, got %d", m.Phase())
	}
	if m.Done() {
		t.Error("5ms should remain in the final phase")
	}

	m.Advance(5 * time.Millisecond)
	if !m.Done() {
		t.Error("machine should be done after all phases elapse")
	}
	if m.Level() != gpio.High {
		t.Error("completed machine keeps the final phase level")
	}
}

func TestMachineEmptyProgramIsDone(t *testing.T) {
	m := NewMachine(nil)
	if !m.Done() {
		t.Error("empty program should be immediately done")
	}
	if m.Level() != gpio.Low {
		t.Error("empty program level should be low")
	}
}

func TestMachineOvershootStopsAtDone(t *testing.T) {
	m := NewMachine(Program{{Level: gpio.High, Duration: time.Millisecond}})
	m.Advance(time.Hour)
	if !m.Done() {
		t.Error("large advance should complete the program")
	}
}
