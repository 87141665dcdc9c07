package sim

import (
	"errors"
	"fmt"

	"stepbus/config"
	"stepbus/core"
	"stepbus/protocol"
)

var errStillBusy = errors.New("sim: device still busy")

// Rig is a device wired to simulated hardware and driven tick by tick.
// Not safe for concurrent use; Emulator runs one in real time.
type Rig struct {
	Board  *config.BoardConfig
	Device *core.Device
	Pins   *Pins
	Bus    *Bus
	Axes   []*Axis

	ticks uint32
	trace *Trace
}

// NewRig builds a device for a board on a fresh simulated GPIO bank. Motors
// with a limit pin get a home switch closing at physical position 0.
func NewRig(board *config.BoardConfig) (*Rig, error) {
	dc, err := board.DeviceConfig()
	if err != nil {
		return nil, err
	}

	r := &Rig{Board: board, Pins: NewPins()}
	for _, mc := range dc.Motors {
		axis := r.Pins.Attach(mc.Kind, mc.Pins, 0)
		if mc.Pins.Limit.Valid() {
			axis.SetSwitch(Switch{At: 0, ActiveHigh: mc.Settings.LimitControl.ActiveHigh()})
		}
		r.Axes = append(r.Axes, axis)
	}

	dc.GPIO = r.Pins
	r.Device, err = core.NewDevice(dc)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	r.Bus = NewBus(r.Device)
	return r, nil
}

// NewPresetRig builds a rig for a named board preset
func NewPresetRig(name string) (*Rig, error) {
	board, err := config.Preset(name)
	if err != nil {
		return nil, err
	}
	return NewRig(board)
}

// Address returns the bus address of motor i
func (r *Rig) Address(i int) uint16 {
	return uint16(r.Device.Address(i))
}

// Send writes a command to motor i
func (r *Rig) Send(i int, cmd protocol.Command) error {
	return r.Bus.Tx(r.Address(i), protocol.Encode(nil, cmd), nil)
}

// Status reads motor i's status record
func (r *Rig) Status(i int) (protocol.Status, error) {
	var buf [protocol.StatusLen]byte
	if err := r.Bus.Tx(r.Address(i), nil, buf[:]); err != nil {
		return protocol.Status{}, err
	}
	return protocol.ParseStatus(buf[:])
}

// Step runs one tick interrupt followed by one main loop pass
func (r *Rig) Step() {
	core.RunInterrupt(r.Device.Tick)
	r.Device.Poll()
	r.ticks++
	if r.trace != nil && r.ticks%r.trace.Interval == 0 {
		r.sample()
	}
}

// Advance runs n ticks
func (r *Rig) Advance(n int) {
	for i := 0; i < n; i++ {
		r.Step()
	}
}

// RunUntilIdle runs until no motor is busy and returns the ticks taken
func (r *Rig) RunUntilIdle(limit int) (int, error) {
	r.Device.Poll()
	for n := 0; n < limit; n++ {
		if r.Device.Idle() {
			return n, nil
		}
		r.Step()
	}
	return limit, errStillBusy
}

// Ticks returns the ticks run so far
func (r *Rig) Ticks() uint32 {
	return r.ticks
}

// Record starts tracing every motor once per interval ticks
func (r *Rig) Record(interval uint32) {
	if interval == 0 {
		interval = 1
	}
	core.ClearTimingRing()
	r.trace = &Trace{Board: r.Board.Name, Interval: interval}
	r.sample()
}

// Trace stops tracing and returns the recording with the controller's
// timing events attached
func (r *Rig) Trace() *Trace {
	t := r.trace
	if t == nil {
		return nil
	}
	t.AddEvents(core.TimingEvents())
	r.trace = nil
	return t
}

func (r *Rig) sample() {
	for i := 0; i < r.Device.NumMotors(); i++ {
		m := r.Device.Motor(i)
		r.trace.Samples = append(r.trace.Samples, Sample{
			Tick:     r.ticks,
			Motor:    uint8(i),
			Position: m.Position(),
			Physical: int32(r.Axes[i].Position()),
			Speed:    m.Speed(),
			State:    m.StateByte(),
		})
	}
}
