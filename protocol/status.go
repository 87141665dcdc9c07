package protocol

// StatusLen is the size of the record returned by every bus read
const StatusLen = 4

// Status is the 4-byte record returned to a bus read
type Status struct {
	State    byte
	PosHigh  byte
	PosLow   byte
	Checksum byte
}

// NewStatus builds a status record for a state byte and a position,
// filling in the checksum
func NewStatus(state byte, pos uint16) Status {
	s := Status{
		State:   state,
		PosHigh: byte(pos >> 8),
		PosLow:  byte(pos),
	}
	s.Checksum = s.sum()
	return s
}

func (s Status) sum() byte {
	return s.State + s.PosHigh + s.PosLow
}

// Valid reports whether the checksum matches the first three bytes
func (s Status) Valid() bool {
	return s.Checksum == s.sum()
}

// Bytes returns the record in transmit order
func (s Status) Bytes() [StatusLen]byte {
	return [StatusLen]byte{s.State, s.PosHigh, s.PosLow, s.Checksum}
}

// Position returns the 16-bit position field
func (s Status) Position() uint16 {
	return uint16(s.PosHigh)<<8 | uint16(s.PosLow)
}

// ErrorBits returns the error code field of the state byte
func (s Status) ErrorBits() byte {
	return s.State & StateErrorMask
}

func (s Status) Busy() bool     { return s.State&StateBusy != 0 }
func (s Status) MotorOn() bool  { return s.State&StateMotorOn != 0 }
func (s Status) Homed() bool    { return s.State&StateHomed != 0 }
func (s Status) HasError() bool { return s.State&StateErrorBit != 0 }

// IsTestPosition reports whether the record carries the latched test
// position rather than a state byte. The marker is homed without motor on,
// which a device never reports since de-energizing clears homed.
func (s Status) IsTestPosition() bool {
	return s.State == TestPositionMarker
}

// ParseStatus decodes and verifies a record read from the bus
func ParseStatus(b []byte) (Status, error) {
	if len(b) < StatusLen {
		return Status{}, ErrShortStatus
	}
	s := Status{State: b[0], PosHigh: b[1], PosLow: b[2], Checksum: b[3]}
	if !s.Valid() {
		return s, ErrBadChecksum
	}
	return s, nil
}
