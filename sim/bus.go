package sim

import (
	"tinygo.org/x/drivers"

	"stepbus/core"
)

// ErrNack is returned when no motor answers at the address
var ErrNack = core.ErrNack

// Bus is a bus master wired straight to a device's bus interrupt handlers.
// A transaction with both w and r is a write followed by a repeated-start read.
type Bus struct {
	dev *core.Device

	// Overflow marks the next written byte as overrun, as if the peripheral
	// received it before the previous one was taken. Only set it while no
	// other goroutine uses the bus.
	Overflow bool
}

var _ drivers.I2C = (*Bus)(nil)

// NewBus attaches a bus master to a device
func NewBus(dev *core.Device) *Bus {
	return &Bus{dev: dev}
}

// Tx performs one transaction
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if !b.Overflow || len(w) == 0 || addr > 0x7F {
		return b.dev.Tx(addr, w, r)
	}
	b.Overflow = false

	var err error
	core.RunInterrupt(func() {
		if !b.dev.BusStart(uint8(addr), false) {
			err = ErrNack
			return
		}
		b.dev.BusReceive(w[0], true)
		for _, c := range w[1:] {
			b.dev.BusReceive(c, false)
		}
		b.dev.BusStop()
	})
	if err != nil || len(r) == 0 {
		return err
	}
	return b.dev.Tx(addr, nil, r)
}
