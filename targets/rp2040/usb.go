//go:build rp2040

package main

import (
	"machine"
	"time"

	"stepbus/core"
	"stepbus/protocol"
)

var (
	// Buffers for the USB link
	inputBuffer  *protocol.RxBuffer
	outputBuffer *protocol.ScratchOutput
	link         *protocol.Link

	// Debug counters
	linkErrors               uint32
	busErrors                uint32
	consecutiveWriteFailures uint32
)

// InitUSB initializes USB serial communication.
// On the rp2040 machine.Serial is USB CDC, not a UART.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// usbLinkLoop answers link frames from the host. Every frame is one bus
// transaction against the device.
func usbLinkLoop(d *core.Device) {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			linkErrors++
			time.Sleep(100 * time.Millisecond)
			go usbLinkLoop(d)
		}
	}()

	inputBuffer = protocol.NewRxBuffer(protocol.ScratchSize)
	outputBuffer = protocol.NewScratchOutput()
	link = protocol.NewLink(outputBuffer, d)
	link.OnError = func(addr uint8, err error) {
		linkErrors++
	}

	for {
		if machine.Serial.Buffered() == 0 {
			// Yield to avoid a busy loop
			time.Sleep(100 * time.Microsecond)
			continue
		}
		for machine.Serial.Buffered() > 0 {
			c, err := machine.Serial.ReadByte()
			if err != nil {
				linkErrors++
				break
			}
			if inputBuffer.Write([]byte{c}) == 0 {
				// Full of garbage the decoder could not resync on
				linkErrors++
				inputBuffer.Reset()
			}
		}
		link.Receive(inputBuffer)
		writeUSB()
	}
}

// writeUSB sends the pending replies, dropping them once the host has
// stopped reading
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := machine.Serial.Write(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
