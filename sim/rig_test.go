package sim

import (
	"bytes"
	"errors"
	"testing"

	"stepbus/core"
	"stepbus/protocol"
)

func newRig(t *testing.T, board string) *Rig {
	t.Helper()
	r, err := NewPresetRig(board)
	if err != nil {
		t.Fatalf("NewPresetRig(%q) failed: %v", board, err)
	}
	return r
}

func mustSend(t *testing.T, r *Rig, i int, cmd protocol.Command) {
	t.Helper()
	if err := r.Send(i, cmd); err != nil {
		t.Fatalf("Send to motor %d failed: %v", i, err)
	}
}

func mustStatus(t *testing.T, r *Rig, i int) protocol.Status {
	t.Helper()
	st, err := r.Status(i)
	if err != nil {
		t.Fatalf("Status of motor %d failed: %v", i, err)
	}
	return st
}

func fakeHome(t *testing.T, r *Rig) {
	t.Helper()
	for i := 0; i < r.Device.NumMotors(); i++ {
		mustSend(t, r, i, protocol.Control(protocol.OpFakeHome))
	}
	r.Step()
	for i := 0; i < r.Device.NumMotors(); i++ {
		if st := mustStatus(t, r, i); !st.Homed() || !st.MotorOn() {
			t.Fatalf("Motor %d not homed, state 0x%02x", i, st.State)
		}
	}
}

func TestBusNack(t *testing.T) {
	r := newRig(t, "b3")

	for _, addr := range []uint16{0x0F, 0x13, 0x80} {
		if err := r.Bus.Tx(addr, []byte{protocol.OpMotorOn}, nil); !errors.Is(err, ErrNack) {
			t.Errorf("Address 0x%02x: expected ErrNack, got %v", addr, err)
		}
	}
	if err := r.Bus.Tx(0x12, nil, make([]byte, protocol.StatusLen)); err != nil {
		t.Errorf("Expected motor 2 to answer, got %v", err)
	}
}

func TestRigMove(t *testing.T) {
	r := newRig(t, "b1")
	mustSend(t, r, 0, protocol.LoadSettings(3, 4000, 200, 32000))
	fakeHome(t, r)

	mustSend(t, r, 0, protocol.Move(16000))
	r.Step()
	if st := mustStatus(t, r, 0); !st.Busy() {
		t.Fatalf("Expected busy after Move, got state 0x%02x", st.State)
	}

	ticks, err := r.RunUntilIdle(1000000)
	if err != nil {
		t.Fatalf("Move did not finish: %v", err)
	}
	// 16000 units at 4000 units/s plus the ramps
	if ticks < 4*core.TicksPerSecond || ticks > 6*core.TicksPerSecond {
		t.Errorf("Expected the move to take 4-6 s, took %d ticks", ticks)
	}

	st := mustStatus(t, r, 0)
	if st.Position() != 16000 || st.Busy() || st.HasError() {
		t.Errorf("Expected idle at 16000, got state 0x%02x pos %d", st.State, st.Position())
	}
	if got := r.Axes[0].Position(); got != 16000 {
		t.Errorf("Expected physical position 16000, got %d", got)
	}
	if r.Axes[0].Overruns() != 0 {
		t.Errorf("Expected no steps into reset, got %d", r.Axes[0].Overruns())
	}

	mustSend(t, r, 0, protocol.AccelSpeedMove(1000, 9000, 5))
	if _, err := r.RunUntilIdle(1000000); err != nil {
		t.Fatalf("Return move did not finish: %v", err)
	}
	if got := r.Axes[0].Position(); got != 1000 {
		t.Errorf("Expected physical position 1000, got %d", got)
	}
}

func TestRigMoveRequiresHome(t *testing.T) {
	r := newRig(t, "b1")

	mustSend(t, r, 0, protocol.Move(500))
	r.Step()

	st := mustStatus(t, r, 0)
	if !st.HasError() || core.ErrorCode(st.ErrorBits()) != core.ErrNotHomed {
		t.Errorf("Expected not homed error, got state 0x%02x", st.State)
	}
	if after := mustStatus(t, r, 0); after.HasError() {
		t.Errorf("Expected the error to clear on read, got state 0x%02x", after.State)
	}
	if r.Axes[0].Pulses() != 0 {
		t.Errorf("Expected no steps, got %d", r.Axes[0].Pulses())
	}
}

func TestRigDriverFault(t *testing.T) {
	r := newRig(t, "b3")
	fakeHome(t, r)

	for i := 0; i < 3; i++ {
		mustSend(t, r, i, protocol.Move(uint16(3000+2000*i)))
	}
	r.Advance(25000)

	r.Axes[1].SetFault(true)
	r.Advance(10)

	stopped := make([]int, 3)
	for i, a := range r.Axes {
		stopped[i] = a.Position()
	}
	r.Advance(5000)

	for i, a := range r.Axes {
		if a.Position() != stopped[i] {
			t.Errorf("Motor %d moved after the fault", i)
		}
		st := mustStatus(t, r, i)
		if !st.HasError() || !st.Busy() || st.MotorOn() || st.Homed() {
			t.Errorf("Motor %d: expected error and busy only, got state 0x%02x", i, st.State)
		}
		want := core.ErrNone
		if i == 1 {
			want = core.ErrMotorFault
		}
		if got := core.ErrorCode(st.ErrorBits()); got != want {
			t.Errorf("Motor %d: expected %v, got %v", i, want, got)
		}
	}
	if r.Device.Faults().Raised() != 1 {
		t.Errorf("Expected 1 raised error, got %d", r.Device.Faults().Raised())
	}
}

func TestRigHoming(t *testing.T) {
	r := newRig(t, "b1")
	mustSend(t, r, 0, protocol.LoadSettings(3, 4000, 200, 32000, 1000, 60, 20, 500))
	r.Axes[0].SetSwitch(Switch{At: -3000})

	mustSend(t, r, 0, protocol.Control(protocol.OpStartHoming))
	if _, err := r.RunUntilIdle(2000000); err != nil {
		t.Fatalf("Homing did not finish: %v", err)
	}

	st := mustStatus(t, r, 0)
	if !st.Homed() || !st.MotorOn() || st.HasError() {
		t.Fatalf("Expected homed, got state 0x%02x", st.State)
	}
	if st.Position() != 500 {
		t.Errorf("Expected home position 500, got %d", st.Position())
	}
	if got := r.Axes[0].Position(); got < -2980 || got > -2970 {
		t.Errorf("Expected to finish about 20 past the switch at -3000, got %d", got)
	}

	// Moves are now relative to the switch
	mustSend(t, r, 0, protocol.Move(1500))
	if _, err := r.RunUntilIdle(1000000); err != nil {
		t.Fatalf("Move did not finish: %v", err)
	}
	if got, want := r.Axes[0].Position(), -2980+1000; got < want || got > want+10 {
		t.Errorf("Expected physical position near %d, got %d", want, got)
	}
}

func TestRigUnipolar(t *testing.T) {
	r := newRig(t, "u6")
	fakeHome(t, r)

	mustSend(t, r, 2, protocol.Move(300))
	mustSend(t, r, 5, protocol.SpeedMove(120, 512))
	if _, err := r.RunUntilIdle(1000000); err != nil {
		t.Fatalf("Moves did not finish: %v", err)
	}

	for i, a := range r.Axes {
		want := 0
		switch i {
		case 2:
			want = 300
		case 5:
			want = 120
		}
		if a.Position() != want {
			t.Errorf("Motor %d: expected physical position %d, got %d", i, want, a.Position())
		}
		if st := mustStatus(t, r, i); int(st.Position()) != want || st.Busy() {
			t.Errorf("Motor %d: expected idle at %d, got state 0x%02x pos %d", i, want, st.State, st.Position())
		}
	}
}

func TestRigBusOverflow(t *testing.T) {
	r := newRig(t, "b1")
	fakeHome(t, r)

	r.Bus.Overflow = true
	mustSend(t, r, 0, protocol.Move(500))
	r.Step()

	st := mustStatus(t, r, 0)
	if core.ErrorCode(st.ErrorBits()) != core.ErrBusOverflow {
		t.Errorf("Expected bus overflow error, got state 0x%02x", st.State)
	}
	if r.Bus.Overflow {
		t.Error("Expected the overflow flag to be consumed")
	}
}

func TestRigTrace(t *testing.T) {
	r := newRig(t, "b1")
	fakeHome(t, r)

	r.Record(500)
	mustSend(t, r, 0, protocol.Move(2000))
	if _, err := r.RunUntilIdle(1000000); err != nil {
		t.Fatalf("Move did not finish: %v", err)
	}
	trace := r.Trace()
	if trace == nil {
		t.Fatal("Expected a trace")
	}
	if r.Trace() != nil {
		t.Error("Expected recording to stop")
	}

	samples := trace.MotorSamples(0)
	if len(samples) < 2 {
		t.Fatalf("Expected samples, got %d", len(samples))
	}
	last := samples[len(samples)-1]
	if last.Position > 2000 || int(last.Physical) != int(last.Position) {
		t.Errorf("Expected physical to follow position, got %d and %d", last.Physical, last.Position)
	}

	var done bool
	for _, e := range trace.Events {
		if e.Type == core.EvtMoveDone && e.Value1 == 2000 {
			done = true
		}
	}
	if !done {
		t.Error("Expected a move done event")
	}

	var buf bytes.Buffer
	if err := trace.WriteCBOR(&buf); err != nil {
		t.Fatalf("WriteCBOR failed: %v", err)
	}
	back, err := ReadTrace(&buf)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if back.Board != "b1" || back.Interval != 500 {
		t.Errorf("Expected board b1 interval 500, got %q %d", back.Board, back.Interval)
	}
	if len(back.Samples) != len(trace.Samples) || back.Samples[len(back.Samples)-1] != trace.Samples[len(trace.Samples)-1] {
		t.Error("Samples changed in the round trip")
	}
	if len(back.Events) != len(trace.Events) {
		t.Errorf("Expected %d events, got %d", len(trace.Events), len(back.Events))
	}
}

func TestLinkOverflowThroughBus(t *testing.T) {
	r := newRig(t, "b1")
	fakeHome(t, r)

	out := protocol.NewScratchOutput()
	link := protocol.NewLink(out, r.Bus)
	var failed int
	link.OnError = func(addr uint8, err error) { failed++ }

	wire := protocol.NewScratchOutput()
	protocol.EncodeLinkFrame(wire, protocol.LinkFrame{Seq: 3, Addr: uint8(r.Address(0)), Payload: []byte{protocol.OpMotorOn}})

	r.Bus.Overflow = true
	link.Receive(protocol.NewSliceInputBuffer(wire.Result()))
	r.Step()

	if failed != 0 {
		t.Errorf("Expected the write to be acknowledged, got %d failures", failed)
	}
	reply, _, err := protocol.DecodeLinkFrame(out.Result())
	if err != nil || reply.Seq != 3 || reply.Failed {
		t.Fatalf("Unexpected reply %+v (%v)", reply, err)
	}
	if st := mustStatus(t, r, 0); core.ErrorCode(st.ErrorBits()) != core.ErrBusOverflow {
		t.Errorf("Expected bus overflow error through the link, got state 0x%02x", st.State)
	}
}
