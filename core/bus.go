package core

import (
	"errors"

	"stepbus/protocol"
)

// ErrNack is returned by Tx when no motor answers at the address
var ErrNack = errors.New("address not acknowledged")

// busTransaction is the state of the transaction in progress on the bus
type busTransaction struct {
	motor   int // -1 when not addressed
	read    bool
	reply   [protocol.StatusLen]byte
	replyAt uint8
}

// BusStart handles an address match. It returns false when the address
// belongs to none of the motors, so the peripheral can NACK.
// Bus interrupt context.
func (d *Device) BusStart(addr uint8, read bool) bool {
	idx := int(addr) - int(d.base)
	if idx < 0 || idx >= len(d.motors) {
		d.bus.motor = -1
		return false
	}
	m := &d.motors[idx]
	d.bus.motor = idx
	d.bus.read = read
	d.bus.replyAt = 0

	if !read {
		m.rx.Begin()
		return true
	}

	// A pending error is reported first; the test position stays armed
	// for the read after it
	var st protocol.Status
	if m.testPosRead && m.stateByte&protocol.StateErrorBit == 0 {
		st = protocol.NewStatus(protocol.TestPositionMarker, uint16(m.homeTestPos))
		m.testPosRead = false
	} else {
		st = protocol.NewStatus(m.stateByte|protocol.Version<<7, uint16(m.curPos))
		clearOnRead(m)
	}
	d.bus.reply = st.Bytes()
	return true
}

// BusReceive handles one byte written by the bus master. overflow reports
// that the peripheral received it before the previous byte was taken.
// Bus interrupt context.
func (d *Device) BusReceive(b byte, overflow bool) {
	if d.bus.motor < 0 || d.bus.read {
		return
	}
	m := &d.motors[d.bus.motor]
	if overflow {
		m.rx.Abort()
		d.faults.Latch(m.index, ErrBusOverflow)
		return
	}
	if err := m.rx.Push(b); err != nil {
		d.faults.Latch(m.index, busErrorCode(err))
	}
}

// BusRequest returns the next byte for the bus master to read.
// Bus interrupt context.
func (d *Device) BusRequest() byte {
	if d.bus.motor < 0 || !d.bus.read || int(d.bus.replyAt) >= len(d.bus.reply) {
		return 0xFF
	}
	b := d.bus.reply[d.bus.replyAt]
	d.bus.replyAt++
	return b
}

// BusStop handles the stop condition ending a transaction.
// Bus interrupt context.
func (d *Device) BusStop() {
	if d.bus.motor < 0 {
		return
	}
	m := &d.motors[d.bus.motor]
	if !d.bus.read {
		if err := m.rx.End(); err != nil {
			d.faults.Latch(m.index, busErrorCode(err))
		}
	}
	d.bus.motor = -1
}

// Tx performs one whole bus transaction for a master that is not on the
// bus, such as the serial link. A transaction with both w and r is a write
// followed by a repeated-start read. Not for interrupt context.
func (d *Device) Tx(addr uint16, w, r []byte) error {
	if addr > protocol.MaxAddress {
		return ErrNack
	}
	var err error
	RunInterrupt(func() {
		if len(w) > 0 || len(r) == 0 {
			if !d.BusStart(uint8(addr), false) {
				err = ErrNack
				return
			}
			for _, c := range w {
				d.BusReceive(c, false)
			}
			// A repeated start ends the write like a stop condition
			d.BusStop()
			if len(r) == 0 {
				return
			}
		}
		if !d.BusStart(uint8(addr), true) {
			err = ErrNack
			return
		}
		for i := range r {
			r[i] = d.BusRequest()
		}
		d.BusStop()
	})
	return err
}

func busErrorCode(err error) ErrorCode {
	switch err {
	case protocol.ErrBusOverflow:
		return ErrBusOverflow
	case protocol.ErrCommandNotDone:
		return ErrCommandNotDone
	}
	return ErrCommandData
}
