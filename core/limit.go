package core

// LimitSwitch debounces a home switch: the reported state only changes
// after SampleCount consecutive samples disagree with it.
// Sampled from the main loop.
type LimitSwitch struct {
	SampleCount uint8
	count       uint8
	active      bool
}

// Reset forces the debounced state to the current raw reading
func (l *LimitSwitch) Reset(level, activeHigh bool) {
	l.active = level == activeHigh
	l.count = 0
}

// Sample feeds one raw pin reading and returns the debounced active state
func (l *LimitSwitch) Sample(level, activeHigh bool) bool {
	raw := level == activeHigh
	if raw == l.active {
		l.count = 0
		return l.active
	}
	l.count++
	if l.count >= l.SampleCount {
		l.active = raw
		l.count = 0
	}
	return l.active
}

// Active returns the debounced state without sampling
func (l *LimitSwitch) Active() bool {
	return l.active
}

// sampleLimit reads a motor's switch through its driver. present is false
// when no switch is fitted.
func (m *Motor) sampleLimit() (active bool, present bool) {
	level, present := m.driver.LimitLevel()
	if !present {
		return false, false
	}
	return m.limit.Sample(level, m.move.LimitControl.ActiveHigh()), true
}
