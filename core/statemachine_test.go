package core

import (
	"testing"

	"stepbus/protocol"
)

func TestMoveRequiresHome(t *testing.T) {
	d, _ := newTestDevice(t, 2, nil)

	send(d, 0, protocol.Move(1000))
	d.Poll()

	st := busRead(t, d, 0)
	if ErrorCode(st.ErrorBits()) != ErrNotHomed {
		t.Errorf("Expected not homed (0x70), got state 0x%02x", st.State)
	}
	if !busRead(t, d, 1).HasError() {
		t.Error("Expected error bit on the other motor")
	}
	if d.Motor(0).Position() != 0 || d.Motor(0).busy {
		t.Error("Motor moved without being homed")
	}
}

func TestMoveBeyondMaxPosition(t *testing.T) {
	d, _ := newTestDevice(t, 1, func(i int, mc *MotorConfig) {
		mc.Settings.MaxPosition = 1000
	})
	homeAll(d)

	send(d, 0, protocol.Move(1001))
	d.Poll()

	if ErrorCode(busRead(t, d, 0).ErrorBits()) != ErrBounds {
		t.Error("Expected bounds error for a target above max position")
	}
}

func TestMoveReachesTarget(t *testing.T) {
	tests := []struct {
		name     string
		start    uint16
		cmd      protocol.Command
		maxSpeed uint16
	}{
		{"move forward", 0, protocol.Move(3000), 4000},
		{"move back", 3000, protocol.Move(7), 4000},
		{"speed move", 0, protocol.SpeedMove(2000, 1024), 1024},
		{"accel speed move", 0, protocol.AccelSpeedMove(2500, 6000, 7), 6000},
		{"no ramp", 0, protocol.AccelSpeedMove(1003, 3000, 0), 3000},
		{"short", 100, protocol.Move(103), 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t, 1, func(i int, mc *MotorConfig) {
				mc.Settings.HomePosition = tt.start
			})
			homeAll(d)
			m := d.Motor(0)
			target := int16(tt.cmd.Target)
			forward := target >= m.Position()

			send(d, 0, tt.cmd)
			d.Poll()

			peak := uint16(0)
			for n := 0; m.busy; n++ {
				if n > 2000000 {
					t.Fatal("Move did not finish")
				}
				advance(d, 1)
				pos := m.Position()
				if (forward && pos > target) || (!forward && pos < target) {
					t.Fatalf("Stepped past the target: at %d, target %d", pos, target)
				}
				if m.speed > peak {
					peak = m.speed
				}
			}

			if m.Position() != target {
				t.Errorf("Expected position %d, got %d", target, m.Position())
			}
			if peak > tt.maxSpeed {
				t.Errorf("Expected peak speed at most %d, got %d", tt.maxSpeed, peak)
			}
			st := busRead(t, d, 0)
			if st.Busy() || st.HasError() || !st.Homed() {
				t.Errorf("Expected homed idle status, got 0x%02x", st.State)
			}
			if int16(st.Position()) != target {
				t.Errorf("Expected reported position %d, got %d", target, st.Position())
			}
		})
	}
}

func TestMoveDecelerationTrigger(t *testing.T) {
	d, _ := newTestDevice(t, 1, nil)
	homeAll(d)
	m := d.Motor(0)

	send(d, 0, protocol.Move(16000))
	d.Poll()

	latched := false
	var lastPos int16
	var lastSpeed uint16
	prevSpeed := m.speed
	for n := 0; m.busy; n++ {
		if n > 1000000 {
			t.Fatal("Move did not finish")
		}
		RunInterrupt(d.Tick)
		deciding := !m.stepPending
		pos, speed, near := m.Position(), m.speed, m.nearTarget
		d.Poll()
		if !deciding || !m.busy {
			continue
		}

		if !near && m.nearTarget {
			latched = true
			remaining := uint32(16000 - int32(pos))
			limit := uint32(d.Table().CalcDist(3, speed)) + decelMargin
			if remaining > limit {
				t.Errorf("Deceleration started early: %d remaining, limit %d", remaining, limit)
			}
			if lastSpeed > m.Settings.Floor {
				prevLimit := uint32(d.Table().CalcDist(3, lastSpeed)) + decelMargin
				if prev := uint32(16000 - int32(lastPos)); prev <= prevLimit {
					t.Errorf("Deceleration started late: %d remaining at the previous step, limit %d", prev, prevLimit)
				}
			}
		}
		if !latched && m.speed < prevSpeed {
			t.Errorf("Speed fell from %d to %d before deceleration", prevSpeed, m.speed)
		}
		if latched && m.speed > prevSpeed {
			t.Errorf("Speed rose from %d to %d while decelerating", prevSpeed, m.speed)
		}
		if m.speed > 4000 {
			t.Errorf("Speed %d above the default speed", m.speed)
		}
		prevSpeed = m.speed
		lastPos, lastSpeed = pos, speed
	}

	if !latched {
		t.Error("Deceleration never triggered")
	}
	if m.Position() != 16000 {
		t.Errorf("Expected position 16000, got %d", m.Position())
	}
	if m.StateByte()&protocol.StateBusy != 0 {
		t.Error("Busy bit still set")
	}
}

func TestMoveReversesOnlyAtFloor(t *testing.T) {
	d, _ := newTestDevice(t, 1, nil)
	homeAll(d)
	m := d.Motor(0)

	send(d, 0, protocol.Move(16000))
	advance(d, 50000)
	if m.speed <= m.Settings.Floor {
		t.Fatalf("Expected motor at speed, got %d", m.speed)
	}

	send(d, 0, protocol.Move(100))
	dir := m.dir
	for n := 0; m.busy; n++ {
		if n > 2000000 {
			t.Fatal("Move did not finish")
		}
		speed := m.speed
		advance(d, 1)
		if m.dir != dir {
			if speed > m.Settings.Floor {
				t.Fatalf("Reversed at speed %d", speed)
			}
			dir = m.dir
		}
	}
	if m.Position() != 100 {
		t.Errorf("Expected position 100, got %d", m.Position())
	}
}

func TestSoftStop(t *testing.T) {
	d, gpio := newTestDevice(t, 1, nil)
	homeAll(d)
	m := d.Motor(0)

	send(d, 0, protocol.Move(16000))
	advance(d, 40000)
	send(d, 0, protocol.Control(protocol.OpSoftStop))
	d.Poll()
	if m.State() != StateSoftStopping {
		t.Errorf("Expected soft-stopping, got %v", m.State())
	}
	runUntilIdle(t, d, 200000)

	st := busRead(t, d, 0)
	if st.Busy() || !st.MotorOn() || !st.Homed() {
		t.Errorf("Expected stopped, energized and homed, got 0x%02x", st.State)
	}
	if m.Position() >= 16000 {
		t.Error("Soft stop did not stop short of the target")
	}

	send(d, 0, protocol.Move(16000))
	advance(d, 40000)
	send(d, 0, protocol.Control(protocol.OpSoftStopReset))
	runUntilIdle(t, d, 200000)

	st = busRead(t, d, 0)
	if st.MotorOn() || st.Homed() {
		t.Errorf("Expected de-energized and unhomed after a resetting soft stop, got 0x%02x", st.State)
	}
	if gpio.pins[testMotorPins(0, Bipolar).Reset] {
		t.Error("Driver left out of reset")
	}
}

func TestSoftStopIdle(t *testing.T) {
	d, _ := newTestDevice(t, 1, nil)
	homeAll(d)

	send(d, 0, protocol.Control(protocol.OpSoftStopReset))
	d.Poll()
	if st := busRead(t, d, 0); st.MotorOn() || st.Homed() {
		t.Errorf("Expected idle resetting soft stop to de-energize, got 0x%02x", st.State)
	}
}

func TestHardStop(t *testing.T) {
	d, _ := newTestDevice(t, 2, nil)
	homeAll(d)
	m := d.Motor(0)

	send(d, 0, protocol.Move(16000))
	send(d, 1, protocol.Move(16000))
	advance(d, 40000)
	send(d, 0, protocol.Control(protocol.OpHardStop))
	d.Poll()

	pos := m.Position()
	advance(d, 1000)
	if m.Position() != pos || m.busy {
		t.Error("Motor kept moving after a hard stop")
	}
	st := busRead(t, d, 0)
	if st.MotorOn() || st.Homed() || st.Busy() || st.HasError() {
		t.Errorf("Expected de-energized idle status, got 0x%02x", st.State)
	}
	if !d.Motor(1).busy {
		t.Error("Hard stop affected another motor")
	}
}

func TestCommandsIgnoredWhileFaulted(t *testing.T) {
	d, gpio := newTestDevice(t, 2, nil)
	resetPin := testMotorPins(1, Bipolar).Reset

	send(d, 0, protocol.Move(1000))
	d.Poll()

	send(d, 1, protocol.Control(protocol.OpMotorOn))
	d.Poll()
	if gpio.pins[resetPin] {
		t.Error("MotorOn accepted while the error bit was set")
	}

	send(d, 1, protocol.Control(protocol.OpHardStop))
	d.Poll()
	if d.Faults().Raised() != 1 {
		t.Errorf("Expected only the first error raised, got %d", d.Faults().Raised())
	}

	busRead(t, d, 1)
	send(d, 1, protocol.Control(protocol.OpMotorOn))
	d.Poll()
	if !gpio.pins[resetPin] {
		t.Error("MotorOn not accepted after the error was read")
	}
}

func TestStepNotDone(t *testing.T) {
	d, _ := newTestDevice(t, 1, nil)
	homeAll(d)
	m := d.Motor(0)

	RunInterrupt(func() {
		m.stepPending = true
		m.stepUnits = 1
		m.nextStepTick = GetTime() - 3
	})
	advance(d, 1)

	if m.Position() != 0 {
		t.Error("A late step was still taken")
	}
	if ErrorCode(busRead(t, d, 0).ErrorBits()) != ErrStepNotDone {
		t.Error("Expected step not done error")
	}
}

func TestMoveOutOfBoundsWhileMoving(t *testing.T) {
	d, _ := newTestDevice(t, 1, nil)
	homeAll(d)
	m := d.Motor(0)

	// Lower the limit under a motor that is already heading past it
	send(d, 0, protocol.Move(16000))
	advance(d, 10000)
	m.Settings.MaxPosition = uint16(m.Position())
	advance(d, 1000)

	if ErrorCode(busRead(t, d, 0).ErrorBits()) != ErrBounds {
		t.Error("Expected bounds error")
	}
	if uint16(m.Position()) > m.Settings.MaxPosition {
		t.Errorf("Position %d beyond max %d", m.Position(), m.Settings.MaxPosition)
	}
}

func TestUnipolarMove(t *testing.T) {
	d, gpio := newTestDevice(t, 1, func(i int, mc *MotorConfig) {
		mc.Kind = Unipolar
		mc.Settings.DefaultSpeed = 400
		mc.Settings.Floor = 50
	})
	homeAll(d)
	m := d.Motor(0)

	send(d, 0, protocol.Move(10))
	runUntilIdle(t, d, 200000)
	if m.Position() != 10 {
		t.Fatalf("Expected position 10, got %d", m.Position())
	}

	pins := testMotorPins(0, Unipolar)
	var coils uint8
	for i, pin := range pins.Phases {
		if gpio.pins[pin] {
			coils |= 1 << i
		}
	}
	if want := unipolarPattern[10&3]; coils != want {
		t.Errorf("Expected phase pattern %04b, got %04b", want, coils)
	}

	send(d, 0, protocol.Move(3))
	runUntilIdle(t, d, 200000)
	if m.Position() != 3 || m.phase != 3 {
		t.Errorf("Expected position 3 phase 3, got %d phase %d", m.Position(), m.phase)
	}
}

func TestFakeHome(t *testing.T) {
	d, _ := newTestDevice(t, 1, func(i int, mc *MotorConfig) {
		mc.Settings.HomePosition = 500
	})
	send(d, 0, protocol.Control(protocol.OpFakeHome))
	d.Poll()

	st := busRead(t, d, 0)
	if !st.Homed() || !st.MotorOn() || st.Position() != 500 {
		t.Errorf("Expected homed at 500, got state 0x%02x pos %d", st.State, st.Position())
	}
}

func TestLoadSettingsDuringMove(t *testing.T) {
	d, _ := newTestDevice(t, 1, func(i int, mc *MotorConfig) {
		mc.Settings.DefaultSpeed = 4000
	})
	homeAll(d)

	send(d, 0, protocol.Move(16000))
	advance(d, 50000)

	m := d.Motor(0)
	if !m.busy || m.Position() <= 1000 {
		t.Fatalf("Expected a move in progress past 1000, got pos %d busy %v", m.Position(), m.busy)
	}

	// New max position and floor apply to the next command only
	send(d, 0, protocol.LoadSettings(3, 4000, 400, 1000))
	runUntilIdle(t, d, 1000000)

	st := busRead(t, d, 0)
	if st.HasError() || st.Position() != 16000 {
		t.Errorf("Expected the move to finish at 16000, got state 0x%02x pos %d", st.State, st.Position())
	}
	if m.Settings.MaxPosition != 1000 || m.Settings.Floor != 400 {
		t.Errorf("Expected the new settings to be stored, got max %d floor %d", m.Settings.MaxPosition, m.Settings.Floor)
	}

	send(d, 0, protocol.Move(2000))
	d.Poll()
	if ErrorCode(busRead(t, d, 0).ErrorBits()) != ErrBounds {
		t.Error("Expected the next move to be checked against the new max position")
	}
}
