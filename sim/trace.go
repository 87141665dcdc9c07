package sim

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"stepbus/core"
)

// Sample is the state of one motor at one instant
type Sample struct {
	Tick     uint32 `cbor:"1,keyasint"`
	Motor    uint8  `cbor:"2,keyasint"`
	Position int16  `cbor:"3,keyasint"`
	Physical int32  `cbor:"4,keyasint"`
	Speed    uint16 `cbor:"5,keyasint"`
	State    uint8  `cbor:"6,keyasint"`
}

// Event is a controller timing event
type Event struct {
	Type   uint8  `cbor:"1,keyasint"`
	Motor  uint8  `cbor:"2,keyasint"`
	Tick   uint32 `cbor:"3,keyasint"`
	Value1 uint32 `cbor:"4,keyasint"`
	Value2 uint32 `cbor:"5,keyasint"`
}

// Trace records a simulation run
type Trace struct {
	Board    string   `cbor:"1,keyasint"`
	Interval uint32   `cbor:"2,keyasint"` // ticks between samples
	Samples  []Sample `cbor:"3,keyasint"`
	Events   []Event  `cbor:"4,keyasint,omitempty"`
}

// AddEvents appends controller timing events
func (t *Trace) AddEvents(events []core.TimingEvent) {
	for _, e := range events {
		t.Events = append(t.Events, Event{
			Type:   e.EventType,
			Motor:  e.Motor,
			Tick:   e.Clock,
			Value1: e.Value1,
			Value2: e.Value2,
		})
	}
}

// MotorSamples returns the samples of one motor in time order
func (t *Trace) MotorSamples(motor uint8) []Sample {
	var out []Sample
	for _, s := range t.Samples {
		if s.Motor == motor {
			out = append(out, s)
		}
	}
	return out
}

// WriteCBOR encodes the trace to w
func (t *Trace) WriteCBOR(w io.Writer) error {
	if err := cbor.NewEncoder(w).Encode(t); err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	return nil
}

// ReadTrace decodes a trace written by WriteCBOR
func ReadTrace(r io.Reader) (*Trace, error) {
	var t Trace
	if err := cbor.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &t, nil
}
