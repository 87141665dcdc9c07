//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"stepbus/core"
)

// rp2040 timer registers. The runtime sleeps on alarm 0; the step clock
// uses alarm 3.
const (
	timerBase     = 0x40054000
	timerALARM3   = timerBase + 0x1C
	timerTIMERAWL = timerBase + 0x28
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38

	alarm3Bit = 1 << 3
)

var (
	alarm3    = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM3)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
	timerIntr = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	timerInte = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
)

var (
	tickDevice *core.Device
	nextTickUS uint32 // owner: tick interrupt
	lateTicks  uint32 // alarms that found their deadline already passed
)

// StartTick arms alarm 3 to run the device's step clock every TickPeriodUS
func StartTick(d *core.Device) {
	tickDevice = d

	intr := interrupt.New(rp.IRQ_TIMER_IRQ_3, tickHandler)
	intr.SetPriority(0x00) // highest

	nextTickUS = timerRAWL.Get() + core.TickPeriodUS
	timerIntr.Set(alarm3Bit)
	timerInte.SetBits(alarm3Bit)
	alarm3.Set(nextTickUS)
	intr.Enable()
}

func tickHandler(interrupt.Interrupt) {
	timerIntr.Set(alarm3Bit) // write to clear

	now := timerRAWL.Get()
	nextTickUS += core.TickPeriodUS
	if int32(nextTickUS-now) <= 0 {
		// An alarm in the past would not fire until the counter wraps
		lateTicks++
		nextTickUS = now + core.TickPeriodUS
	}
	alarm3.Set(nextTickUS)

	tickDevice.Tick()
}
