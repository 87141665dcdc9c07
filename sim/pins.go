// Package sim runs a controller against simulated hardware: a GPIO bank with
// driver chips and home switches attached, and a bus master that talks to
// the device through its interrupt entry points.
package sim

import (
	"errors"
	"sync"

	"stepbus/core"
)

// NumPins is the size of the simulated GPIO bank
const NumPins = 32

var errBadPin = errors.New("sim: pin out of range")

type pinMode uint8

const (
	modeUnused pinMode = iota
	modeOutput
	modePullUp
	modePullDown
)

// Pins is a simulated GPIO bank implementing core.GPIODriver. Outputs notify
// the watchers attached to them; inputs read an attached source when there
// is one, else the pull resistor level.
type Pins struct {
	mu       sync.Mutex
	levels   [NumPins]bool
	modes    [NumPins]pinMode
	sources  [NumPins]func() bool
	watchers [NumPins][]func(level bool)
}

// NewPins creates a bank with every pin unused
func NewPins() *Pins {
	return &Pins{}
}

func (p *Pins) configure(pin core.GPIOPin, mode pinMode) error {
	if pin >= NumPins {
		return errBadPin
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes[pin] = mode
	p.levels[pin] = mode == modePullUp
	return nil
}

func (p *Pins) ConfigureOutput(pin core.GPIOPin) error {
	return p.configure(pin, modeOutput)
}

func (p *Pins) ConfigureInputPullUp(pin core.GPIOPin) error {
	return p.configure(pin, modePullUp)
}

func (p *Pins) ConfigureInputPullDown(pin core.GPIOPin) error {
	return p.configure(pin, modePullDown)
}

// SetPin drives an output and notifies its watchers when the level changes
func (p *Pins) SetPin(pin core.GPIOPin, value bool) error {
	if pin >= NumPins {
		return errBadPin
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.levels[pin] == value {
		return nil
	}
	p.levels[pin] = value
	for _, w := range p.watchers[pin] {
		w(value)
	}
	return nil
}

func (p *Pins) GetPin(pin core.GPIOPin) (bool, error) {
	if pin >= NumPins {
		return false, errBadPin
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read(pin), nil
}

func (p *Pins) ReadPin(pin core.GPIOPin) bool {
	v, _ := p.GetPin(pin)
	return v
}

// read returns a pin level. Caller holds mu.
func (p *Pins) read(pin core.GPIOPin) bool {
	if p.modes[pin] != modeOutput && p.sources[pin] != nil {
		return p.sources[pin]()
	}
	return p.levels[pin]
}

// Level returns the current level of any pin
func (p *Pins) Level(pin core.GPIOPin) bool {
	return p.ReadPin(pin)
}

// Watch calls fn whenever an output pin changes level. fn runs with the
// bank locked.
func (p *Pins) Watch(pin core.GPIOPin, fn func(level bool)) {
	if pin >= NumPins {
		return
	}
	p.mu.Lock()
	p.watchers[pin] = append(p.watchers[pin], fn)
	p.mu.Unlock()
}

// Drive attaches a source to an input pin. The source runs with the bank
// locked.
func (p *Pins) Drive(pin core.GPIOPin, source func() bool) {
	if pin >= NumPins {
		return
	}
	p.mu.Lock()
	p.sources[pin] = source
	p.mu.Unlock()
}

// Mode reports whether a pin is configured as an output, with pull-up or
// with pull-down
func (p *Pins) Mode(pin core.GPIOPin) string {
	if pin >= NumPins {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.modes[pin] {
	case modeOutput:
		return "output"
	case modePullUp:
		return "pull-up"
	case modePullDown:
		return "pull-down"
	}
	return "unused"
}
