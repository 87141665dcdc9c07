//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"

	"stepbus/config"
	"stepbus/protocol"
)

// The rp2040 I2C peripheral answers a single target address, so the bus
// reaches motor 0 only. Every motor is reachable over the USB link.

// busPeripheral returns the I2C block whose pin mux carries sda
func busPeripheral(sda machine.Pin) *machine.I2C {
	if (sda/2)%2 == 0 {
		return machine.I2C0
	}
	return machine.I2C1
}

// StartBusTarget configures the board's I2C pins in target mode and passes
// the transactions for addr to dev from a goroutine
func StartBusTarget(board *config.BoardConfig, dev drivers.I2C, addr uint8) error {
	sda, scl, err := board.BusPins()
	if err != nil {
		return err
	}
	bus := busPeripheral(machine.Pin(sda))
	err = bus.Configure(machine.I2CConfig{
		SDA:       machine.Pin(sda),
		SCL:       machine.Pin(scl),
		Frequency: 100 * machine.KHz,
		Mode:      machine.I2CModeTarget,
	})
	if err != nil {
		return err
	}
	if err := bus.Listen(uint16(addr)); err != nil {
		return err
	}
	go serveBus(bus, dev, addr)
	return nil
}

func serveBus(bus *machine.I2C, dev drivers.I2C, addr uint8) {
	buf := make([]byte, 32)
	reply := make([]byte, protocol.StatusLen)
	for {
		evt, n, err := bus.WaitForEvent(buf)
		if err != nil {
			busErrors++
			continue
		}
		switch evt {
		case machine.I2CReceive:
			if err := dev.Tx(uint16(addr), buf[:n], nil); err != nil {
				busErrors++
			}
		case machine.I2CRequest:
			if err := dev.Tx(uint16(addr), nil, reply); err != nil {
				busErrors++
			}
			if err := bus.Reply(reply); err != nil {
				busErrors++
			}
		case machine.I2CFinish:
		}
	}
}
