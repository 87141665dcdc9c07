//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts disables interrupts and returns the previous state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// RunInterrupt runs handler in interrupt context. Real interrupt handlers
// already run with interrupts masked; handlers serviced from a goroutine
// (such as the bus target loop) get them masked here.
func RunInterrupt(handler func()) {
	state := interrupt.Disable()
	handler()
	interrupt.Restore(state)
}
