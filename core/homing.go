package core

import "stepbus/protocol"

// startHoming begins the homing sequence. Without a limit switch the motor
// is homed at once.
func (d *Device) startHoming(m *Motor) {
	m.move = m.Settings
	d.energize(m)
	m.setStateBits(protocol.StateHomed, false)

	level, present := m.driver.LimitLevel()
	if !present {
		d.completeHoming(m)
		return
	}

	ctrl := m.move.LimitControl
	m.limit.Reset(level, ctrl.ActiveHigh())
	switch ctrl.StartDir() {
	case StartReverse:
		m.homeDir = false
	case StartForward:
		m.homeDir = true
	case StartLimitActive:
		m.homeDir = !m.limit.Active()
	case StartLimitPassive:
		m.homeDir = m.limit.Active()
	}

	m.homing = true
	m.stopping = false
	m.nearTarget = false
	m.home = homeSeek
	m.accelCode = m.move.AccelCode
	m.targetSpeed = m.move.HomingSpeed
	d.startMotion(m, m.homeDir)
	DebugPrintln("[HOME] motor " + Itoa(int(m.index)) + " seeking")
}

// updateHoming advances the homing sequence by one step decision
func (d *Device) updateHoming(m *Motor) {
	active, _ := m.sampleLimit()
	d.homingStep(m, active)
}

// homingStep runs the current phase, falling through to the next phase
// when one completes without needing a step
func (d *Device) homingStep(m *Motor, active bool) {
	floor := m.move.Floor

	switch m.home {
	case homeSeek:
		if active {
			state := disableInterrupts()
			m.homeTestPos = m.curPos
			restoreInterrupts(state)
			RecordTiming(EvtLimitHit, m.index, GetTime(), uint32(uint16(m.homeTestPos)), 0)
			m.home = homeStop
			d.homingStep(m, active)
			return
		}
		if m.dir != m.homeDir && m.speed > floor {
			// Still running the other way from a preempted move
			m.decelerate(floor)
			break
		}
		m.dir = m.homeDir
		m.cruise()

	case homeStop:
		if m.speed > floor {
			m.decelerate(floor)
			break
		}
		if m.move.LimitControl.ForceEnd() == EndActive {
			d.completeHoming(m)
			return
		}
		m.home = homeBackoff
		m.dir = !m.homeDir
		m.targetSpeed = m.move.HomingBackupSpeed
		d.homingStep(m, active)
		return

	case homeBackoff:
		if !active {
			m.home = homeOffset
			pos := m.Position()
			if m.homeDir {
				m.targetPos = pos - int16(m.move.HomeOffset)
			} else {
				m.targetPos = pos + int16(m.move.HomeOffset)
			}
			m.targetDir = m.dir
			d.homingStep(m, active)
			return
		}
		m.dir = !m.homeDir
		m.cruise()

	case homeOffset:
		arrived, coast := d.planToTarget(m)
		if arrived {
			if active && m.move.LimitControl.ForceEnd() == EndInactive {
				// Keep creeping away until the switch reads released
				if m.homeDir {
					m.targetPos--
				} else {
					m.targetPos++
				}
				m.dir = !m.homeDir
				m.speed = floor
				d.scheduleStep(m, true)
				return
			}
			d.completeHoming(m)
			return
		}
		d.scheduleStep(m, coast)
		return
	}

	d.scheduleStep(m, false)
}

// cruise moves the speed toward targetSpeed for constant-speed homing phases
func (m *Motor) cruise() {
	if m.speed < m.targetSpeed {
		m.accelerate(m.targetSpeed)
	} else if m.speed > m.targetSpeed {
		m.decelerate(m.targetSpeed)
	}
}

// completeHoming assigns the home position and marks the motor homed
func (d *Device) completeHoming(m *Motor) {
	d.stopStepping(m)

	state := disableInterrupts()
	m.curPos = int16(m.move.HomePosition)
	m.setStateBitsLocked(protocol.StateHomed|protocol.StateMotorOn, true)
	restoreInterrupts(state)

	RecordTiming(EvtHomed, m.index, GetTime(), uint32(m.move.HomePosition), 0)
	DebugPrintln("[HOME] motor " + Itoa(int(m.index)) + " homed")
}
