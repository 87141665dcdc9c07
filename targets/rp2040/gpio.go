//go:build rp2040

package main

import (
	"machine"

	"stepbus/core"
)

// numPins is the number of user GPIOs, GP0-GP29
const numPins = 30

// RPGPIODriver implements core.GPIODriver on the rp2040 pins. SetPin and
// GetPin run in the tick interrupt, so configured pins are tracked in a
// bitmask rather than a map.
type RPGPIODriver struct {
	configured uint32
}

// NewRPGPIODriver creates a new rp2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if !pin.Valid() || pin >= numPins {
		return errBadPin
	}
	if d.configured&(1<<pin) != 0 {
		// Already configured, this is OK
		return nil
	}
	// GPIO numbers map directly to machine pins
	machine.Pin(pin).Configure(machine.PinConfig{Mode: mode})
	d.configured |= 1 << pin
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

// SetPin sets an output high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if pin >= numPins || d.configured&(1<<pin) == 0 {
		return errNotConfigured
	}
	machine.Pin(pin).Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	if pin >= numPins || d.configured&(1<<pin) == 0 {
		return false, errNotConfigured
	}
	return machine.Pin(pin).Get(), nil
}

func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	value, _ := d.GetPin(pin)
	return value
}

// release hands a pin over to another peripheral such as PIO
func (d *RPGPIODriver) release(pin core.GPIOPin) {
	if pin < numPins {
		d.configured &^= 1 << pin
	}
}
