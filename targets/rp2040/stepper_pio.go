//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"stepbus/core"
)

// Step pulse program. Each 32-bit word pulled from the FIFO is a pulse
// count minus one; every pulse is 4 PIO cycles high and 4 low.
//
// With the clock divided to 1 MHz a pulse takes 8 µs, well inside one tick.
func buildStepProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),        // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(), // 1: out x, 32
		// pulse:
		asm.Set(rp2pio.SetDestPins, 1).Delay(3).Encode(), // 2: set pins, 1 [3]
		asm.Set(rp2pio.SetDestPins, 0).Delay(3).Encode(), // 3: set pins, 0 [3]
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Encode(),         // 4: jmp x--, pulse
		// .wrap
	}
}

const (
	stepProgramOrigin = 0 // jump targets are absolute
	stepClockDiv      = 125
)

var (
	pioBlocks      = [2]*rp2pio.PIO{rp2pio.PIO0, rp2pio.PIO1}
	stepOffsets    [2]uint8
	stepProgLoaded [2]bool
	nextSM         uint8 // state machines handed out, PIO0 first
)

// PIOStepDriver is a bipolar driver whose step pulses come from a PIO state
// machine. Direction, microstep select, reset and the inputs stay on GPIO.
type PIOStepDriver struct {
	*core.BipolarDriver
	gpio    *RPGPIODriver
	pins    core.MotorPins
	pio     *rp2pio.PIO
	pioNum  uint8
	sm      rp2pio.StateMachine
	stepPin machine.Pin
}

// attachPIOBackends gives each bipolar motor a PIO step backend while state
// machines last. The rest keep the GPIO backend.
func attachPIOBackends(dc *core.DeviceConfig, gpio *RPGPIODriver) {
	for i := range dc.Motors {
		mc := &dc.Motors[i]
		if mc.Kind != core.Bipolar {
			continue
		}
		drv, err := NewPIOStepDriver(gpio, mc.Pins)
		if err != nil {
			core.DebugPrintln("[PIO] motor " + core.Itoa(i) + ": " + err.Error())
			return
		}
		mc.Driver = drv
	}
}

// NewPIOStepDriver claims the next free state machine
func NewPIOStepDriver(gpio *RPGPIODriver, pins core.MotorPins) (*PIOStepDriver, error) {
	if nextSM >= 8 {
		return nil, errNoStateMachine
	}
	pioNum := nextSM / 4
	pio := pioBlocks[pioNum]
	d := &PIOStepDriver{
		BipolarDriver: core.NewBipolarDriver(gpio, pins),
		gpio:          gpio,
		pins:          pins,
		pio:           pio,
		pioNum:        pioNum,
		sm:            pio.StateMachine(nextSM % 4),
		stepPin:       machine.Pin(pins.Step),
	}
	nextSM++
	return d, nil
}

// Init configures the GPIO signals, then hands the step pin to PIO
func (d *PIOStepDriver) Init() error {
	if err := d.BipolarDriver.Init(); err != nil {
		return err
	}
	if !d.sm.TryClaim() {
		return errNoStateMachine
	}

	if !stepProgLoaded[d.pioNum] {
		offset, err := d.pio.AddProgram(buildStepProgram(), stepProgramOrigin)
		if err != nil {
			return err
		}
		stepOffsets[d.pioNum] = offset
		stepProgLoaded[d.pioNum] = true
	}
	offset := stepOffsets[d.pioNum]

	d.gpio.release(d.pins.Step)
	d.stepPin.Configure(machine.PinConfig{Mode: d.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(d.stepPin, 1)
	// Shift right, explicit pull, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(buildStepProgram()))-1, offset)
	cfg.SetClkDivIntFrac(stepClockDiv, 0)

	// Pin directions must be set after Init
	d.sm.Init(offset, cfg)
	d.sm.SetPindirsConsecutive(d.stepPin, 1, true)
	d.sm.SetPinsConsecutive(d.stepPin, 1, false)
	d.sm.SetEnabled(true)
	return nil
}

// Step queues one pulse. A pulse is shorter than a tick, so the FIFO never
// holds more than one word.
func (d *PIOStepDriver) Step() {
	if d.sm.IsTxFIFOFull() {
		return
	}
	d.sm.TxPut(0)
}

// Name returns the backend name
func (d *PIOStepDriver) Name() string {
	return "pio"
}
