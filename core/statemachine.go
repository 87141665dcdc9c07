package core

import "stepbus/protocol"

// handleMove starts a positioning move. Moves preempt any motion in
// progress; a moving motor keeps its speed and direction and is steered
// to the new target by the profile engine.
func handleMove(d *Device, m *Motor, cmd *protocol.Command) error {
	if !m.homed() {
		return ErrNotHomed
	}
	if cmd.Target > m.Settings.MaxPosition {
		return ErrBounds
	}

	m.move = m.Settings
	speed := m.move.DefaultSpeed
	if cmd.Kind != protocol.KindMove && cmd.Speed != 0 {
		speed = cmd.Speed
	}
	m.accelCode = m.move.AccelCode
	if cmd.Kind == protocol.KindAccelSpeedMove {
		m.accelCode = cmd.AccelCode & 0x07
	}

	m.targetPos = int16(cmd.Target)
	m.targetSpeed = speed
	m.nearTarget = false
	m.homing = false
	m.stopping = false
	m.targetDir = m.targetPos >= m.Position()
	d.startMotion(m, m.targetDir)
	return nil
}

// startMotion marks the motor busy. A stationary motor restarts its step
// timing from now at the floor speed.
func (d *Device) startMotion(m *Motor, forward bool) {
	if m.speed == 0 || !m.busy {
		state := disableInterrupts()
		m.lastStepTick = GetTime()
		restoreInterrupts(state)
		m.speed = m.move.Floor
		m.speedRem = 0
		m.dir = forward
	}
	m.busy = true
	m.setStateBits(protocol.StateBusy, true)
}

func handleStartHoming(d *Device, m *Motor, cmd *protocol.Command) error {
	d.startHoming(m)
	return nil
}

// handleArmTestPosition makes the next status read report the position
// latched when homing first closed the switch
func handleArmTestPosition(d *Device, m *Motor, cmd *protocol.Command) error {
	state := disableInterrupts()
	m.testPosRead = true
	restoreInterrupts(state)
	return nil
}

// handleSoftStop decelerates to the floor speed and stops, optionally
// de-energizing afterwards
func handleSoftStop(d *Device, m *Motor, cmd *protocol.Command) error {
	m.resetAfter = cmd.Reset
	if !m.busy {
		d.finishSoftStop(m)
		return nil
	}
	m.homing = false
	m.stopping = true
	return nil
}

// finishSoftStop ends a soft stop once the floor speed is reached
func (d *Device) finishSoftStop(m *Motor) {
	d.stopStepping(m)
	if m.resetAfter {
		d.deenergize(m)
	}
	m.resetAfter = false
}

func handleHardStop(d *Device, m *Motor, cmd *protocol.Command) error {
	d.hardStop(m)
	return nil
}

// hardStop halts immediately and de-energizes
func (d *Device) hardStop(m *Motor) {
	d.stopStepping(m)
	m.resetAfter = false
	d.deenergize(m)
}

func handleMotorOn(d *Device, m *Motor, cmd *protocol.Command) error {
	d.energize(m)
	return nil
}

// handleFakeHome declares the current position to be the home position
func handleFakeHome(d *Device, m *Motor, cmd *protocol.Command) error {
	d.energize(m)
	state := disableInterrupts()
	m.curPos = int16(m.Settings.HomePosition)
	m.setStateBitsLocked(protocol.StateHomed, true)
	restoreInterrupts(state)
	return nil
}

func handleLoadSettings(d *Device, m *Motor, cmd *protocol.Command) error {
	m.Settings.Load(cmd)
	if m.Settings.Floor < d.table.Floor() {
		DebugPrintln("[CMD] motor " + Itoa(int(m.index)) + " floor below distance table floor")
	}
	return nil
}

// energize takes the driver out of reset
func (d *Device) energize(m *Motor) {
	m.driver.Energize(true)
	m.setStateBits(protocol.StateMotorOn, true)
}

// deenergize puts the driver into reset. The position is no longer
// trusted, so the homed bit goes with it.
func (d *Device) deenergize(m *Motor) {
	m.driver.Energize(false)
	m.setStateBits(protocol.StateMotorOn|protocol.StateHomed, false)
}
