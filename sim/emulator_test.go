package sim

import (
	"context"
	"net"
	"testing"
	"time"

	"stepbus/protocol"
)

// linkRoundTrip sends one frame and waits for its reply
func linkRoundTrip(t *testing.T, conn net.Conn, f protocol.LinkFrame) protocol.LinkFrame {
	t.Helper()
	out := protocol.NewScratchOutput()
	protocol.EncodeLinkFrame(out, f)
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(out.Result()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var buf []byte
	chunk := make([]byte, 64)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		buf = append(buf, chunk[:n]...)
		reply, _, err := protocol.DecodeLinkFrame(buf)
		if err == protocol.ErrShortFrame {
			continue
		}
		if err != nil {
			t.Fatalf("Bad reply frame: %v", err)
		}
		return reply
	}
}

func TestEmulatorServe(t *testing.T) {
	r := newRig(t, "b1")
	e := NewEmulator(r)

	client, server := net.Pipe()
	defer client.Close()
	done := make(chan error, 1)
	go func() { done <- e.Serve(server) }()

	addr := uint8(r.Address(0))
	reply := linkRoundTrip(t, client, protocol.LinkFrame{Seq: 1, Addr: addr, Payload: []byte{protocol.OpFakeHome}})
	if reply.Seq != 1 || reply.Failed || len(reply.Payload) != 0 {
		t.Errorf("Unexpected write reply %+v", reply)
	}
	r.Step()

	reply = linkRoundTrip(t, client, protocol.LinkFrame{Seq: 2, Addr: addr, Read: true, Payload: []byte{protocol.StatusLen}})
	if reply.Seq != 2 || reply.Failed {
		t.Fatalf("Unexpected read reply %+v", reply)
	}
	st, err := protocol.ParseStatus(reply.Payload)
	if err != nil {
		t.Fatalf("Bad status: %v", err)
	}
	if !st.Homed() || !st.MotorOn() {
		t.Errorf("Expected homed and on, got state 0x%02x", st.State)
	}

	// Nobody answers at the next address
	reply = linkRoundTrip(t, client, protocol.LinkFrame{Seq: 3, Addr: addr + 1, Payload: []byte{protocol.OpMotorOn}})
	if !reply.Failed {
		t.Error("Expected a failed reply")
	}

	client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Serve to end cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	// Run publishes the error count with its next snapshot
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	e.Run(ctx)
	snap := e.Snapshot()
	if snap.LinkErrors != 1 {
		t.Errorf("Expected 1 link error, got %d", snap.LinkErrors)
	}
	if snap.Tick <= 1 {
		t.Errorf("Expected Run to advance the rig, tick %d", snap.Tick)
	}
	if len(snap.Motors) != 1 || snap.Motors[0].Address != addr {
		t.Errorf("Unexpected motors %+v", snap.Motors)
	}
}

func TestEmulatorRunMovesMotor(t *testing.T) {
	r := newRig(t, "b1")
	fakeHome(t, r)
	e := NewEmulator(r)

	if err := e.Send(0, protocol.Move(200)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	m := e.Snapshot().Motors[0]
	if m.Position <= 0 {
		t.Errorf("Expected the motor to move, got position %d", m.Position)
	}
	if m.Physical != int(m.Position) {
		t.Errorf("Expected physical %d, got %d", m.Position, m.Physical)
	}
}
