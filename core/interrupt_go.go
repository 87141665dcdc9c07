//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqLock stands in for the interrupt mask on the host. The tick and bus
// handlers run under it via RunInterrupt, so a main-loop critical section
// excludes them the same way disabling interrupts does on the MCU.
// Critical sections hold it for at most one motor record update.
var irqLock sync.Mutex

// disableInterrupts enters a critical section. Not reentrant.
func disableInterrupts() State {
	irqLock.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	irqLock.Unlock()
}

// RunInterrupt runs handler in interrupt context. Handlers must not open
// their own critical sections.
func RunInterrupt(handler func()) {
	irqLock.Lock()
	defer irqLock.Unlock()
	handler()
}
