// stepbus runs the stepper controller against simulated hardware: as a
// scripted simulation, an interactive console, or a live emulation that a
// bus master drives over a serial port or WebSocket link.
package main

import (
	"os"

	"stepbus/cmd/stepbus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
