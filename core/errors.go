package core

// ErrorCode is the bus-facing fault code reported in bits 6-4 of a motor's
// state byte. It implements error so handlers can return it directly.
type ErrorCode uint8

const (
	ErrNone           ErrorCode = 0x00
	ErrMotorFault     ErrorCode = 0x10 // driver chip over-temperature or over-current
	ErrBusOverflow    ErrorCode = 0x20 // bus byte received before the last was taken
	ErrCommandData    ErrorCode = 0x30 // command format incorrect
	ErrCommandNotDone ErrorCode = 0x40 // new command arrived before the old one was consumed
	ErrStepNotDone    ErrorCode = 0x50 // step rate too fast for the main loop
	ErrBounds         ErrorCode = 0x60 // position < 0 or > max position while moving
	ErrNotHomed       ErrorCode = 0x70 // move attempted before homing
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrMotorFault:
		return "motor fault"
	case ErrBusOverflow:
		return "bus overflow"
	case ErrCommandData:
		return "command data error"
	case ErrCommandNotDone:
		return "command not done"
	case ErrStepNotDone:
		return "step not done"
	case ErrBounds:
		return "position out of bounds"
	case ErrNotHomed:
		return "not homed"
	}
	return "unknown error 0x" + Hex8(uint8(e))
}

// ErrorFromState extracts the error code carried by a state byte
func ErrorFromState(state uint8) ErrorCode {
	return ErrorCode(state & 0x70)
}
