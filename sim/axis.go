package sim

import "stepbus/core"

// Switch models a home switch closed at or below a physical position
type Switch struct {
	At         int  // closed at or below this position
	ActiveHigh bool // pin level when closed
}

// Axis models a driver chip and the mechanics behind one motor. It follows
// the motor's output pins and keeps the physical position in the same units
// as the controller (1/8 step bipolar, one phase unipolar).
type Axis struct {
	bank *Pins
	kind core.MotorKind
	pins core.MotorPins

	pos      int
	pulses   int
	lastPh   int
	faulted  bool
	limit    *Switch
	overruns int // steps taken while de-energized
}

// unipolarPhases maps a coil pattern to its phase in the full step sequence
var unipolarPhases = map[uint8]int{0b0011: 0, 0b0110: 1, 0b1100: 2, 0b1001: 3}

// Attach connects an axis to a motor's pins. The physical position starts at pos.
func (p *Pins) Attach(kind core.MotorKind, pins core.MotorPins, pos int) *Axis {
	a := &Axis{bank: p, kind: kind, pins: pins, pos: pos}
	if kind == core.Unipolar {
		for _, pin := range pins.Phases {
			p.Watch(pin, func(bool) { a.phaseChanged() })
		}
	} else {
		p.Watch(pins.Step, func(level bool) {
			if level {
				a.stepPulse()
			}
		})
		if pins.Fault.Valid() {
			p.Drive(pins.Fault, func() bool { return !a.faulted })
		}
	}
	if pins.Limit.Valid() {
		p.Drive(pins.Limit, a.limitLevel)
	}
	return a
}

// stepPulse runs with the bank locked
func (a *Axis) stepPulse() {
	if a.pins.Reset.Valid() && !a.bank.levels[a.pins.Reset] {
		a.overruns++
		return
	}
	ms := [3]bool{}
	for i, pin := range []core.GPIOPin{a.pins.MS1, a.pins.MS2, a.pins.MS3} {
		if pin.Valid() {
			ms[i] = a.bank.levels[pin]
		}
	}
	units := 8
	switch ms {
	case [3]bool{true, false, false}:
		units = 4
	case [3]bool{false, true, false}:
		units = 2
	case [3]bool{true, true, false}:
		units = 1
	}
	forward := a.bank.levels[a.pins.Dir] != a.pins.InvertDir
	if forward {
		a.pos += units
	} else {
		a.pos -= units
	}
	a.pulses++
}

// phaseChanged runs with the bank locked
func (a *Axis) phaseChanged() {
	var pattern uint8
	for i, pin := range a.pins.Phases {
		if a.bank.levels[pin] {
			pattern |= 1 << i
		}
	}
	ph, ok := unipolarPhases[pattern]
	if !ok {
		// Windings released or mid-update
		return
	}
	switch (ph - a.lastPh) & 3 {
	case 0:
		return
	case 1:
		a.pos++
	case 3:
		a.pos--
	}
	a.lastPh = ph
	a.pulses++
}

// limitLevel runs with the bank locked
func (a *Axis) limitLevel() bool {
	if a.limit == nil {
		return true
	}
	closed := a.pos <= a.limit.At
	return closed == a.limit.ActiveHigh
}

// SetSwitch fits a home switch
func (a *Axis) SetSwitch(s Switch) {
	a.bank.mu.Lock()
	a.limit = &s
	a.bank.mu.Unlock()
}

// SetFault drives the driver chip's fault output
func (a *Axis) SetFault(faulted bool) {
	a.bank.mu.Lock()
	a.faulted = faulted
	a.bank.mu.Unlock()
}

// Position returns the physical position
func (a *Axis) Position() int {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	return a.pos
}

// Pulses returns the number of step pulses or phase changes seen
func (a *Axis) Pulses() int {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	return a.pulses
}

// Overruns returns the number of step pulses sent to a driver held in reset
func (a *Axis) Overruns() int {
	a.bank.mu.Lock()
	defer a.bank.mu.Unlock()
	return a.overruns
}
