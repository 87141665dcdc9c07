package core

import "stepbus/protocol"

// FaultController turns an error on one motor into a device-wide stop.
// Errors found in interrupt context are latched and raised by the main loop.
type FaultController struct {
	// shared: critical section
	pending      bool
	pendingMotor uint8
	pendingCode  ErrorCode

	raised uint32 // owner: main loop
}

// Latch records an error detected in interrupt context. The first latched
// error wins until the main loop services it.
func (f *FaultController) Latch(motor uint8, code ErrorCode) {
	if f.pending {
		return
	}
	f.pending = true
	f.pendingMotor = motor
	f.pendingCode = code
}

// Service raises a latched error, if any. Main loop only.
func (f *FaultController) Service(d *Device) {
	state := disableInterrupts()
	pending, motor, code := f.pending, f.pendingMotor, f.pendingCode
	f.pending = false
	restoreInterrupts(state)

	if pending {
		f.Raise(d, motor, code)
	}
}

// Raise stops every motor, sets the error bit on all of them and the error
// code on the culprit. Busy stays set until the error is cleared by a status
// read so a client polling for completion does not mistake a fault for it.
// Main loop only.
func (f *FaultController) Raise(d *Device, culprit uint8, code ErrorCode) {
	for i := range d.motors {
		d.hardStop(&d.motors[i])
	}

	state := disableInterrupts()
	for i := range d.motors {
		d.motors[i].stateByte = protocol.StateErrorBit | protocol.StateBusy
	}
	if int(culprit) < len(d.motors) {
		d.motors[culprit].stateByte |= uint8(code)
	}
	restoreInterrupts(state)

	f.raised++
	RecordTiming(EvtFault, culprit, GetTime(), uint32(code), 0)
	DebugAsync("[FAULT] motor " + Itoa(int(culprit)) + ": " + code.Error())
}

// Raised returns the number of errors raised since start-up
func (f *FaultController) Raised() uint32 {
	return f.raised
}

// clearOnRead drops the error code, error bit and the busy bit held by the
// error from a motor's state byte. Bus interrupt context.
func clearOnRead(m *Motor) {
	if m.stateByte&protocol.StateErrorBit != 0 {
		m.stateByte &^= protocol.StateErrorMask | protocol.StateErrorBit | protocol.StateBusy
	}
	m.stateByte &^= protocol.StateErrorMask
}
