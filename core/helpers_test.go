package core

import (
	"testing"

	"stepbus/protocol"
)

const testBase = 0x10

// testMotorPins gives motor i its own block of ten pins
func testMotorPins(i int, kind MotorKind) MotorPins {
	base := GPIOPin(2 + 10*i)
	pins := UnusedPins()
	if kind == Unipolar {
		pins.Phases = [4]GPIOPin{base, base + 1, base + 2, base + 3}
		return pins
	}
	pins.Step = base
	pins.Dir = base + 1
	pins.Reset = base + 2
	pins.MS1 = base + 3
	pins.MS2 = base + 4
	pins.MS3 = base + 5
	pins.Fault = base + 6
	return pins
}

// newTestDevice builds a device of bipolar motors on a mock GPIO driver.
// configure may adjust each motor before the device is created.
func newTestDevice(t *testing.T, n int, configure func(i int, mc *MotorConfig)) (*Device, *MockGPIODriver) {
	t.Helper()
	gpio := NewMockGPIODriver()
	cfg := DeviceConfig{
		BaseAddress: testBase,
		GPIO:        gpio,
		Motors:      make([]MotorConfig, n),
	}
	for i := range cfg.Motors {
		mc := &cfg.Motors[i]
		mc.Kind = Bipolar
		mc.Settings = DefaultSettings()
		mc.LimitSamples = 2
		if configure != nil {
			configure(i, mc)
		}
		if mc.Pins == (MotorPins{}) {
			mc.Pins = testMotorPins(i, mc.Kind)
		}
	}
	d, err := NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	return d, gpio
}

// busWrite performs one write transaction
func busWrite(d *Device, addr uint8, data []byte) bool {
	var acked bool
	RunInterrupt(func() {
		acked = d.BusStart(addr, false)
		if !acked {
			return
		}
		for _, b := range data {
			d.BusReceive(b, false)
		}
		d.BusStop()
	})
	return acked
}

// send encodes and writes a command to motor i
func send(d *Device, i int, cmd protocol.Command) {
	busWrite(d, d.Address(i), protocol.Encode(nil, cmd))
}

// busRead performs one status read of motor i
func busRead(t *testing.T, d *Device, i int) protocol.Status {
	t.Helper()
	var raw [protocol.StatusLen]byte
	RunInterrupt(func() {
		if !d.BusStart(d.Address(i), true) {
			t.Fatalf("Read of motor %d not acknowledged", i)
		}
		for j := range raw {
			raw[j] = d.BusRequest()
		}
		d.BusStop()
	})
	st, err := protocol.ParseStatus(raw[:])
	if err != nil {
		t.Fatalf("Bad status from motor %d: %v", i, err)
	}
	return st
}

// advance runs ticks step clock interrupts, each followed by a main loop pass
func advance(d *Device, ticks int) {
	for i := 0; i < ticks; i++ {
		RunInterrupt(d.Tick)
		d.Poll()
	}
}

// runUntilIdle advances until no motor is busy, failing after limit ticks
func runUntilIdle(t *testing.T, d *Device, limit int) int {
	t.Helper()
	d.Poll()
	for n := 0; n < limit; n++ {
		if d.Idle() {
			return n
		}
		advance(d, 1)
	}
	t.Fatalf("Device still busy after %d ticks", limit)
	return limit
}

// homeAll fake-homes every motor and clears the resulting state
func homeAll(d *Device) {
	for i := 0; i < d.NumMotors(); i++ {
		send(d, i, protocol.Control(protocol.OpFakeHome))
	}
	d.Poll()
}
