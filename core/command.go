package core

import "stepbus/protocol"

// CommandHandler carries out one decoded command on a motor. A returned
// ErrorCode is raised as a device fault.
type CommandHandler func(d *Device, m *Motor, cmd *protocol.Command) error

// commandHandlers dispatches on the command kind
var commandHandlers = [...]CommandHandler{
	protocol.KindMove:            handleMove,
	protocol.KindSpeedMove:       handleMove,
	protocol.KindAccelSpeedMove:  handleMove,
	protocol.KindStartHoming:     handleStartHoming,
	protocol.KindArmTestPosition: handleArmTestPosition,
	protocol.KindSoftStop:        handleSoftStop,
	protocol.KindHardStop:        handleHardStop,
	protocol.KindMotorOn:         handleMotorOn,
	protocol.KindFakeHome:        handleFakeHome,
	protocol.KindLoadSettings:    handleLoadSettings,
}

// processCommand dispatches a command taken from the motor's receiver.
// Main loop only.
func (d *Device) processCommand(m *Motor, cmd *protocol.Command) {
	RecordTiming(EvtCommand, m.index, GetTime(), uint32(cmd.Kind), uint32(cmd.Target))

	// After an error only stops are accepted until the client reads status
	if m.StateByte()&protocol.StateErrorBit != 0 && !cmd.IsStop() {
		DebugPrintln("[CMD] motor " + Itoa(int(m.index)) + " ignoring " + cmd.Kind.String() + " while faulted")
		return
	}

	var handler CommandHandler
	if int(cmd.Kind) < len(commandHandlers) {
		handler = commandHandlers[cmd.Kind]
	}
	if handler == nil {
		d.faults.Raise(d, m.index, ErrCommandData)
		return
	}

	if err := handler(d, m, cmd); err != nil {
		code, ok := err.(ErrorCode)
		if !ok {
			code = ErrCommandData
		}
		d.faults.Raise(d, m.index, code)
	}
}
