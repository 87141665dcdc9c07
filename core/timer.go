package core

import "sync/atomic"

// The step clock interrupts every 20 µs
const (
	TickPeriodUS   = 20
	TicksPerSecond = 1000000 / TickPeriodUS
)

// systemTicks counts step clock interrupts. On the host the tick goroutine
// and the main loop run concurrently, so access is atomic everywhere.
var systemTicks uint32

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TicksFromUS converts microseconds to ticks
func TicksFromUS(us uint32) uint32 {
	return us / TickPeriodUS
}

// TicksToUS converts ticks to microseconds
func TicksToUS(ticks uint32) uint32 {
	return ticks * TickPeriodUS
}

// timeReached reports whether now is at or past deadline, allowing for
// counter wrap-around
func timeReached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}
