package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"stepbus/core"
	"stepbus/protocol"
)

// MotorView is a copy of one motor's state
type MotorView struct {
	Index     int
	Address   uint8
	Kind      core.MotorKind
	State     core.MotorState
	StateByte uint8
	Position  int16
	Target    int16
	Physical  int
	Speed     uint16
	Microstep uint8
}

// Snapshot is a copy of the whole device state taken between ticks
type Snapshot struct {
	Tick       uint32
	Motors     []MotorView
	Raised     uint32 // errors raised so far
	LinkErrors uint32 // failed link transactions
}

// Snapshot copies the device state. Call it from the goroutine driving the rig.
func (r *Rig) Snapshot() Snapshot {
	s := Snapshot{
		Tick:   r.ticks,
		Motors: make([]MotorView, r.Device.NumMotors()),
		Raised: r.Device.Faults().Raised(),
	}
	for i := range s.Motors {
		m := r.Device.Motor(i)
		s.Motors[i] = MotorView{
			Index:     i,
			Address:   r.Device.Address(i),
			Kind:      m.Kind(),
			State:     m.State(),
			StateByte: m.StateByte(),
			Position:  m.Position(),
			Target:    m.Target(),
			Physical:  r.Axes[i].Position(),
			Speed:     m.Speed(),
			Microstep: m.Microstep(),
		}
	}
	return s
}

// Emulator runs a rig in real time and serves its bus over link streams.
// Bus transactions may come from any goroutine.
type Emulator struct {
	rig *Rig

	mu   sync.Mutex
	snap Snapshot

	linkErrors atomic.Uint32
}

// NewEmulator wraps a rig. The rig must not be driven elsewhere once Run starts.
func NewEmulator(rig *Rig) *Emulator {
	e := &Emulator{rig: rig}
	e.snap = rig.Snapshot()
	return e
}

// Rig returns the emulated rig
func (e *Emulator) Rig() *Rig {
	return e.rig
}

// maxCatchUp bounds the ticks run in one pass after a stall
const maxCatchUp = core.TicksPerSecond / 10

// Run advances the rig in step with the wall clock until ctx is done
func (e *Emulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	var done uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			due := uint64(now.Sub(start)) * core.TicksPerSecond / uint64(time.Second)
			n := due - done
			if n > maxCatchUp {
				n = maxCatchUp
				done = due - n
			}
			e.rig.Advance(int(n))
			done += n

			snap := e.rig.Snapshot()
			snap.LinkErrors = e.linkErrors.Load()
			e.mu.Lock()
			e.snap = snap
			e.mu.Unlock()
		}
	}
}

// Snapshot returns the state published by the last pass of Run
func (e *Emulator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Send writes a command to motor i
func (e *Emulator) Send(i int, cmd protocol.Command) error {
	return e.rig.Send(i, cmd)
}

// Serve answers link frames read from rw until it returns an error.
// End of stream returns nil.
func (e *Emulator) Serve(rw io.ReadWriter) error {
	in := protocol.NewRxBuffer(protocol.ScratchSize)
	out := protocol.NewScratchOutput()
	link := protocol.NewLink(out, e.rig.Bus)
	link.OnError = func(addr uint8, err error) {
		e.linkErrors.Add(1)
	}

	buf := make([]byte, 64)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			in.Write(buf[:n])
			link.Receive(in)
			if reply := out.Result(); len(reply) > 0 {
				if _, werr := rw.Write(reply); werr != nil {
					return werr
				}
				out.Reset()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
