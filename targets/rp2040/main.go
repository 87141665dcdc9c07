//go:build rp2040

package main

import (
	"machine"
	"time"

	"stepbus/config"
	"stepbus/core"
)

// boardName selects the preset board, e.g.
// tinygo flash -target=pico -ldflags="-X main.boardName=b3" ./targets/rp2040
var boardName = "b1"

var (
	dev        *core.Device
	pollPanics uint32
)

func main() {
	// Clear any watchdog state left from before the reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	board, err := config.Preset(boardName)
	if err != nil {
		halt("unknown board " + boardName)
	}

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)

	dc, err := board.DeviceConfig()
	if err != nil {
		halt(err.Error())
	}
	dc.GPIO = gpioDriver
	attachPIOBackends(&dc, gpioDriver)

	dev, err = core.NewDevice(dc)
	if err != nil {
		halt(err.Error())
	}

	if err := StartBusTarget(board, dev, dev.Address(0)); err != nil {
		// The USB link still reaches every motor
		core.DebugPrintln("[BUS] target not started: " + err.Error())
	}
	StartTick(dev)
	go usbLinkLoop(dev)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					pollPanics++
				}
			}()
			dev.Poll()
		}()

		// Yield to the bus and USB goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// halt blinks the status LED forever after a configuration error
func halt(msg string) {
	core.DebugPrintln("[MAIN] " + msg)
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(400 * time.Millisecond)
	}
}
