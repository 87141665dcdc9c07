// Package protocol implements the stepbus slave wire format: the command
// opcodes written to a motor's bus address, the 4-byte status record read
// back from it, and the framed link used to carry bus transactions over a
// serial stream.
package protocol

// Version is the firmware version reported in bit 7 of the state byte
const Version = 0

// Bus addressing
const (
	MaxAddress  = 0x7F
	MaxPosition = 0x7FFF // 15-bit step addresses
)

// State byte layout
const (
	StateVersion   = 0x80
	StateErrorMask = 0x70
	StateErrorBit  = 0x08
	StateBusy      = 0x04
	StateMotorOn   = 0x02
	StateHomed     = 0x01

	// TestPositionMarker replaces the state byte on the read that reports
	// the latched limit-switch test position
	TestPositionMarker = 0x01
)
