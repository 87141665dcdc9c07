package core

import "stepbus/protocol"

// MotorState is the externally observable state of a motor
type MotorState uint8

const (
	StateIdle MotorState = iota
	StateMoving
	StateHoming
	StateSoftStopping
	StateFaulted
)

func (s MotorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateHoming:
		return "homing"
	case StateSoftStopping:
		return "soft-stopping"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// homingPhase tracks progress through the homing sequence
type homingPhase uint8

const (
	homeSeek    homingPhase = iota // drive until the switch becomes active
	homeStop                       // slow to the floor before reversing
	homeBackoff                    // reverse until the switch releases
	homeOffset                     // move HomeOffset further from the switch
)

// Motor is the record for one motor. Fields are grouped by owner:
// the main loop, the tick interrupt, or shared under a critical section.
type Motor struct {
	index    uint8
	kind     MotorKind
	driver   MotorDriver
	limit    LimitSwitch
	Settings Settings // owner: main loop

	// shared: critical section
	stateByte    uint8
	curPos       int16
	stepPending  bool
	nextStepTick uint32
	lastStepTick uint32
	stepUnits    int16 // signed position change applied by the pending step
	phase        uint8 // unipolar phase latched for the pending step
	testPosRead  bool  // next status read returns homeTestPos
	homeTestPos  int16
	rx           protocol.Receiver

	// owner: main loop
	targetPos   int16
	speed       uint16
	speedRem    uint32 // speed change carried between pulses
	targetSpeed uint16
	move        Settings // latched when a move or homing starts
	accelCode   uint8
	dir         bool // true = increasing position
	targetDir   bool
	microstep   uint8
	nearTarget  bool
	busy        bool
	homing      bool
	stopping    bool
	resetAfter  bool
	home        homingPhase
	homeDir     bool // seek direction
}

// Index returns the motor's position on the device
func (m *Motor) Index() uint8 {
	return m.index
}

// Kind returns the motor's drive type
func (m *Motor) Kind() MotorKind {
	return m.kind
}

// Driver returns the hardware backend
func (m *Motor) Driver() MotorDriver {
	return m.driver
}

// Position returns the current position
func (m *Motor) Position() int16 {
	state := disableInterrupts()
	pos := m.curPos
	restoreInterrupts(state)
	return pos
}

// StateByte returns the state byte as a status read would report it
func (m *Motor) StateByte() uint8 {
	state := disableInterrupts()
	b := m.stateByte
	restoreInterrupts(state)
	return b
}

// Speed returns the current speed in units per second
func (m *Motor) Speed() uint16 {
	return m.speed
}

// Microstep returns the current microstep level
func (m *Motor) Microstep() uint8 {
	return m.microstep
}

// Target returns the target position of the current move
func (m *Motor) Target() int16 {
	return m.targetPos
}

// HomeTestPosition returns the position latched when homing first saw the switch
func (m *Motor) HomeTestPosition() int16 {
	state := disableInterrupts()
	pos := m.homeTestPos
	restoreInterrupts(state)
	return pos
}

// State derives the externally observable state
func (m *Motor) State() MotorState {
	switch {
	case m.StateByte()&protocol.StateErrorBit != 0:
		return StateFaulted
	case m.homing:
		return StateHoming
	case m.stopping:
		return StateSoftStopping
	case m.busy:
		return StateMoving
	}
	return StateIdle
}

// setStateBits sets or clears bits of the state byte.
// Called from the main loop with interrupts enabled.
func (m *Motor) setStateBits(mask uint8, set bool) {
	state := disableInterrupts()
	m.setStateBitsLocked(mask, set)
	restoreInterrupts(state)
}

// setStateBitsLocked is setStateBits for callers already in a critical section
func (m *Motor) setStateBitsLocked(mask uint8, set bool) {
	if set {
		m.stateByte |= mask
	} else {
		m.stateByte &^= mask
	}
}

func (m *Motor) homed() bool {
	return m.StateByte()&protocol.StateHomed != 0
}

func (m *Motor) energized() bool {
	return m.StateByte()&protocol.StateMotorOn != 0
}
