package core

import "testing"

func TestLimitSwitchDebounce(t *testing.T) {
	l := LimitSwitch{SampleCount: 3}
	l.Reset(false, true)

	if l.Sample(true, true) || l.Sample(true, true) {
		t.Fatal("Switch reported active before three samples")
	}
	if !l.Sample(true, true) {
		t.Fatal("Expected switch active after three samples")
	}

	// A single glitch does not release it
	l.Sample(false, true)
	if !l.Sample(true, true) {
		t.Error("Glitch released the switch")
	}
}

func TestLimitSwitchPolarity(t *testing.T) {
	l := LimitSwitch{SampleCount: 1}
	l.Reset(true, false)
	if l.Active() {
		t.Error("High level on an active-low switch should be inactive")
	}
	if !l.Sample(false, false) {
		t.Error("Low level on an active-low switch should be active")
	}
}
