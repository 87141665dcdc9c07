package core

import (
	"errors"

	"stepbus/protocol"
)

// MaxMotors is the largest number of motors one device can drive
const MaxMotors = 8

// MotorConfig describes one motor of a board
type MotorConfig struct {
	Kind     MotorKind
	Pins     MotorPins
	Settings Settings

	// LimitSamples is the number of consecutive samples needed to change
	// the debounced home switch state
	LimitSamples uint8

	// Driver overrides the GPIO backend built from Pins (e.g. a PIO backend)
	Driver MotorDriver
}

// DeviceConfig describes a board
type DeviceConfig struct {
	// BaseAddress is the bus address of motor 0; motor i answers at BaseAddress+i
	BaseAddress uint8

	// TableFloor is the floor speed the distance table is computed for. It
	// must not exceed any motor's Floor setting.
	TableFloor uint16

	Motors []MotorConfig

	// GPIO is used to build the default motor backends; the registered
	// driver is used when nil
	GPIO GPIODriver
}

var (
	errNoMotors       = errors.New("device has no motors")
	errTooManyMotors  = errors.New("device motor count exceeds maximum")
	errAddressOverrun = errors.New("motor addresses exceed the 7-bit bus range")
)

// Device owns every motor record of a controller together with the shared
// distance table and fault controller.
//
// Tick and the Bus* methods are interrupt handlers. Poll is one pass of the
// main loop. Everything else is for the main loop or for tests.
type Device struct {
	motors []Motor
	base   uint8
	table  *DistanceTable
	faults FaultController
	steps  uint32 // owner: tick interrupt

	// owner: bus interrupt
	bus busTransaction
}

// NewDevice creates a device and initializes every motor de-energized and unhomed
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if len(cfg.Motors) == 0 {
		return nil, errNoMotors
	}
	if len(cfg.Motors) > MaxMotors {
		return nil, errTooManyMotors
	}
	if int(cfg.BaseAddress)+len(cfg.Motors)-1 > protocol.MaxAddress {
		return nil, errAddressOverrun
	}

	d := &Device{
		motors: make([]Motor, len(cfg.Motors)),
		base:   cfg.BaseAddress,
		table:  NewDistanceTable(cfg.TableFloor),
	}
	d.bus.motor = -1

	for i := range cfg.Motors {
		mc := &cfg.Motors[i]
		m := &d.motors[i]
		m.index = uint8(i)
		m.kind = mc.Kind
		m.Settings = mc.Settings
		m.Settings.sanitize()
		m.move = m.Settings
		m.microstep = MaxMicrostep
		m.accelCode = m.Settings.AccelCode
		m.limit.SampleCount = mc.LimitSamples

		m.driver = mc.Driver
		if m.driver == nil {
			gpio := cfg.GPIO
			if gpio == nil {
				gpio = MustGPIO()
			}
			if mc.Kind == Unipolar {
				m.driver = NewUnipolarDriver(gpio, mc.Pins)
			} else {
				m.driver = NewBipolarDriver(gpio, mc.Pins)
			}
		}
		if err := m.driver.Init(); err != nil {
			return nil, err
		}
		DebugPrintln("[DEV] motor " + Itoa(i) + " " + mc.Kind.String() + " at 0x" + Hex8(d.base+uint8(i)) + " (" + m.driver.Name() + ")")
	}
	return d, nil
}

// Poll runs one pass of the main loop: raise latched errors, take waiting
// commands, check driver faults and plan the next step of every motor.
func (d *Device) Poll() {
	d.faults.Service(d)

	for i := range d.motors {
		m := &d.motors[i]

		state := disableInterrupts()
		cmd, ok := m.rx.Take()
		restoreInterrupts(state)
		if ok {
			d.processCommand(m, &cmd)
		}

		if m.energized() && m.driver.Faulted() {
			d.faults.Raise(d, m.index, ErrMotorFault)
			continue
		}

		if !m.busy {
			continue
		}
		state = disableInterrupts()
		pending := m.stepPending
		restoreInterrupts(state)
		if !pending {
			d.updateMotion(m)
		}
	}
}

// NumMotors returns the number of motors
func (d *Device) NumMotors() int {
	return len(d.motors)
}

// Motor returns the record for motor i
func (d *Device) Motor(i int) *Motor {
	if i < 0 || i >= len(d.motors) {
		return nil
	}
	return &d.motors[i]
}

// Address returns the bus address of motor i
func (d *Device) Address(i int) uint8 {
	return d.base + uint8(i)
}

// BaseAddress returns the bus address of motor 0
func (d *Device) BaseAddress() uint8 {
	return d.base
}

// Table returns the shared distance table
func (d *Device) Table() *DistanceTable {
	return d.table
}

// Faults returns the fault controller
func (d *Device) Faults() *FaultController {
	return &d.faults
}

// Idle reports whether no motor is busy and no command is waiting
func (d *Device) Idle() bool {
	for i := range d.motors {
		m := &d.motors[i]
		state := disableInterrupts()
		waiting := m.rx.Ready()
		restoreInterrupts(state)
		if m.busy || waiting {
			return false
		}
	}
	return true
}
