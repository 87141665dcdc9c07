package core

import (
	"stepbus/protocol"
	"stepbus/x/mathx"
)

const (
	// decelMargin is added to the table distance before latching nearTarget
	decelMargin = 200

	// coastDistance is the remaining distance at or below which the motor
	// finishes at the floor speed with the finest resolution
	coastDistance = 4

	// Pulse-rate hysteresis for microstep adaptation
	refinePulseRate  = 500
	coarsenPulseRate = 1000
)

// updateMotion runs one profile decision for a busy motor whose previous
// step has been taken, and schedules the next step. Main loop only.
func (d *Device) updateMotion(m *Motor) {
	if m.homing {
		d.updateHoming(m)
		return
	}

	if m.stopping {
		if m.speed <= m.move.Floor {
			d.finishSoftStop(m)
			return
		}
		m.decelerate(m.move.Floor)
		d.scheduleStep(m, false)
		return
	}

	arrived, coast := d.planToTarget(m)
	if arrived {
		d.stopStepping(m)
		RecordTiming(EvtMoveDone, m.index, GetTime(), uint32(uint16(m.targetPos)), 0)
		return
	}
	d.scheduleStep(m, coast)
}

// planToTarget applies the positioning rules for a move toward targetPos,
// updating speed and direction. It reports whether the motor has arrived
// and whether the next step should coast.
func (d *Device) planToTarget(m *Motor) (arrived, coast bool) {
	accelerate, decelerate := false, false
	floor := m.move.Floor
	pos := m.Position()

	switch {
	case m.speed <= floor:
		if pos == m.targetPos {
			return true, false
		}
		remaining := m.targetPos - pos
		forward := remaining > 0
		if mathx.Abs(remaining) <= coastDistance {
			coast = true
		} else if uint32(mathx.Abs(remaining)) <= uint32(d.table.CalcDist(m.accelCode, m.speed))+decelMargin {
			// Too close to ramp up; finish at the floor speed
			m.nearTarget = true
		}
		// Direction can change at any time when slow
		m.dir = forward
		m.targetDir = forward

	case m.nearTarget && mathx.Abs(m.targetPos-pos) <= coastDistance:
		// A short ramp ran out of room; finish at the floor speed
		m.speed = floor
		return d.planToTarget(m)

	case m.nearTarget:
		decelerate = true

	case m.dir != m.targetDir:
		// Too fast to reverse
		decelerate = true

	default:
		remaining := uint32(mathx.Abs(int32(m.targetPos) - int32(pos)))
		if remaining <= uint32(d.table.CalcDist(m.accelCode, m.speed))+decelMargin {
			decelerate = true
			m.nearTarget = true
		}
	}

	if coast {
		m.speed = floor
		return false, true
	}

	if !accelerate && !decelerate {
		if m.speed > m.targetSpeed {
			decelerate = true
		} else if !m.nearTarget && m.speed < m.targetSpeed {
			accelerate = true
		}
	}

	if decelerate {
		bound := floor
		if !m.nearTarget && m.dir == m.targetDir {
			// Only slowing to a lower cruise speed
			bound = mathx.Max(floor, m.targetSpeed)
		}
		m.decelerate(bound)
	} else if accelerate {
		m.accelerate(m.targetSpeed)
	}
	return false, false
}

// speedDelta is the speed change for one pulse: the acceleration rate
// times the pulse's position units over the current speed, floor division,
// at least 1. The division remainder carries into the next pulse so the
// average rate holds at high speeds where the quotient is small.
func (m *Motor) speedDelta() uint32 {
	if m.speed == 0 {
		return 0
	}
	units := uint32(1)
	if m.kind == Bipolar {
		units = uint32(stepUnits(m.microstep))
	}
	num := AccelRates[m.accelCode]*units + m.speedRem
	m.speedRem = num % uint32(m.speed)
	return mathx.Max(num/uint32(m.speed), 1)
}

// accelerate raises the speed by one step's worth, never past limit.
// Code 0 jumps straight to limit.
func (m *Motor) accelerate(limit uint16) {
	if m.accelCode == 0 || m.speed == 0 {
		m.speed = limit
		return
	}
	next := uint32(m.speed) + m.speedDelta()
	m.speed = uint16(mathx.Min(next, uint32(limit)))
}

// decelerate lowers the speed by one step's worth, never below bound.
// Code 0 drops straight to bound.
func (m *Motor) decelerate(bound uint16) {
	if m.accelCode == 0 {
		m.speed = bound
		return
	}
	delta := m.speedDelta()
	if delta >= uint32(m.speed) {
		m.speed = bound
		return
	}
	m.speed = mathx.Max(m.speed-uint16(delta), bound)
}

// adaptMicrostep picks the microstep level for the current speed: finer
// below refinePulseRate pulses/s, coarser above coarsenPulseRate but only
// when the position sits on the coarser step grid.
func (m *Motor) adaptMicrostep(pos int16) {
	for {
		pulses := m.speed >> (MaxMicrostep - m.microstep)
		if m.microstep < MaxMicrostep && pulses < refinePulseRate {
			m.microstep++
		} else if m.microstep > MinMicrostep && pulses > coarsenPulseRate &&
			pos&(stepUnits(m.microstep-1)-1) == 0 {
			m.microstep--
		} else {
			break
		}
	}
}

// scheduleStep sets up the next step relative to the last one.
// Main loop only.
func (d *Device) scheduleStep(m *Motor, coast bool) {
	pos := m.Position()
	units := int16(1)
	rate := uint32(m.speed)

	if m.kind == Bipolar {
		if coast {
			m.microstep = MaxMicrostep
		} else if m.nearTarget && !m.stopping {
			// Never step past the target, even when a ramp-less stop left
			// the motor on coarse steps
			remaining := mathx.Abs(m.targetPos - pos)
			for m.microstep < MaxMicrostep && stepUnits(m.microstep) > remaining {
				m.microstep++
			}
		} else if !m.stopping {
			m.adaptMicrostep(pos)
		}
		units = stepUnits(m.microstep)
		rate = uint32(m.speed >> (MaxMicrostep - m.microstep))
		m.driver.SetMicrostep(m.microstep)
	}

	delta := units
	if !m.dir {
		delta = -units
	}

	if !m.homing {
		next := int32(pos) + int32(delta)
		if next < 0 || next > int32(m.move.MaxPosition) {
			d.faults.Raise(d, m.index, ErrBounds)
			return
		}
	}

	ticks := uint32(1)
	if rate > 0 {
		ticks = mathx.Max(TicksPerSecond/rate, 1)
	}

	var phase uint8
	if m.kind == Unipolar {
		phase = (m.phase + uint8(delta)) & 0x03
	}
	m.driver.SetDirection(m.dir)

	state := disableInterrupts()
	m.nextStepTick = m.lastStepTick + ticks
	m.stepUnits = delta
	m.phase = phase
	m.stepPending = true
	restoreInterrupts(state)
}

// stopStepping ends motion without changing the energized state
func (d *Device) stopStepping(m *Motor) {
	m.busy = false
	m.homing = false
	m.stopping = false
	m.nearTarget = false
	m.speed = 0

	state := disableInterrupts()
	m.stepPending = false
	m.setStateBitsLocked(protocol.StateBusy, false)
	restoreInterrupts(state)
}
