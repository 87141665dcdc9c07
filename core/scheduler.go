package core

// maxStepLateTicks is how far past its deadline a pending step may be
// found before the main loop is considered to have fallen behind
const maxStepLateTicks = 1

// Tick is the step clock interrupt handler, called every TickPeriodUS.
// It advances system time and emits every step that has come due.
func (d *Device) Tick() {
	now := getSystemTicks() + 1
	setSystemTicks(now)

	for i := range d.motors {
		m := &d.motors[i]
		if !m.stepPending || !timeReached(now, m.nextStepTick) {
			continue
		}

		if now-m.nextStepTick > maxStepLateTicks {
			// The main loop scheduled this step after it was already due
			m.stepPending = false
			d.faults.Latch(m.index, ErrStepNotDone)
			continue
		}

		if m.kind == Unipolar {
			m.driver.SetPhase(m.phase)
		}
		m.driver.Step()
		m.curPos += m.stepUnits
		m.lastStepTick = now
		m.stepPending = false
		d.steps++
	}
}

// TotalSteps returns the number of steps emitted since start-up
func (d *Device) TotalSteps() uint32 {
	state := disableInterrupts()
	n := d.steps
	restoreInterrupts(state)
	return n
}
