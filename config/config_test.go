package config

import (
	"errors"
	"testing"

	"stepbus/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	data := []byte(`{
		"base_address": 32,
		"motors": [
			{"step_pin": "GP2", "dir_pin": "gpio3", "limit_pin": "9", "settings": {"floor": 150}},
			{"kind": "unipolar", "phase_pins": ["GP10", "GP11", "GP12", "GP13"], "settings": {"accel_code": 0}}
		]
	}`)

	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "custom" {
		t.Errorf("Expected name custom, got %q", cfg.Name)
	}
	if cfg.Motors[0].Kind != "bipolar" {
		t.Errorf("Expected default kind bipolar, got %q", cfg.Motors[0].Kind)
	}
	if cfg.TableFloor != 150 {
		t.Errorf("Expected table floor 150 (lowest motor floor), got %d", cfg.TableFloor)
	}
	if cfg.Motors[1].Settings.Floor != core.DefaultSettings().Floor {
		t.Errorf("Expected default floor, got %d", cfg.Motors[1].Settings.Floor)
	}

	dc, err := cfg.DeviceConfig()
	if err != nil {
		t.Fatalf("DeviceConfig failed: %v", err)
	}
	if dc.BaseAddress != 32 {
		t.Errorf("Expected base address 32, got %d", dc.BaseAddress)
	}
	m0 := dc.Motors[0]
	if m0.Pins.Step != 2 || m0.Pins.Dir != 3 || m0.Pins.Limit != 9 {
		t.Errorf("Unexpected pins %+v", m0.Pins)
	}
	if m0.Pins.Reset != core.NoPin || m0.Pins.Fault != core.NoPin {
		t.Error("Expected unset pins to be NoPin")
	}
	if m0.Settings.AccelCode != core.DefaultSettings().AccelCode {
		t.Errorf("Expected default accel code, got %d", m0.Settings.AccelCode)
	}
	m1 := dc.Motors[1]
	if m1.Kind != core.Unipolar {
		t.Errorf("Expected unipolar, got %v", m1.Kind)
	}
	if m1.Settings.AccelCode != 0 {
		t.Errorf("Expected explicit accel code 0 kept, got %d", m1.Settings.AccelCode)
	}
	if m1.Pins.Phases != [4]core.GPIOPin{10, 11, 12, 13} {
		t.Errorf("Unexpected phase pins %v", m1.Pins.Phases)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no motors", `{"motors": []}`, errNoMotors},
		{"address overrun", `{"base_address": 127, "motors": [{"step_pin":"1","dir_pin":"2"},{"step_pin":"3","dir_pin":"4"}]}`, errBaseAddress},
		{"missing step", `{"motors": [{"dir_pin":"2"}]}`, errStepDirPins},
		{"phase count", `{"motors": [{"kind":"unipolar","phase_pins":["1","2"]}]}`, errPhaseCount},
		{"bad kind", `{"motors": [{"kind":"servo"}]}`, errUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadConfig([]byte(`{`)); err == nil {
		t.Error("Expected JSON syntax error")
	}
}

func TestParsePin(t *testing.T) {
	tests := []struct {
		name string
		want core.GPIOPin
		ok   bool
	}{
		{"", core.NoPin, true},
		{"GP5", 5, true},
		{"gpio12", 12, true},
		{"29", 29, true},
		{"GP30", core.NoPin, false},
		{"PA4", core.NoPin, false},
	}
	for _, tt := range tests {
		got, err := ParsePin(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("ParsePin(%q): unexpected error state %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("ParsePin(%q): expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name   string
		base   uint8
		motors int
		kind   core.MotorKind
	}{
		{"b1", 0x08, 1, core.Bipolar},
		{"b3", 0x10, 3, core.Bipolar},
		{"u6", 0x18, 6, core.Unipolar},
	}

	for _, tt := range tests {
		cfg, err := Preset(tt.name)
		if err != nil {
			t.Fatalf("Preset(%s) failed: %v", tt.name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Preset %s invalid: %v", tt.name, err)
		}
		dc, err := cfg.DeviceConfig()
		if err != nil {
			t.Fatalf("Preset %s DeviceConfig failed: %v", tt.name, err)
		}
		if dc.BaseAddress != tt.base {
			t.Errorf("Preset %s: expected base 0x%02x, got 0x%02x", tt.name, tt.base, dc.BaseAddress)
		}
		if len(dc.Motors) != tt.motors {
			t.Errorf("Preset %s: expected %d motors, got %d", tt.name, tt.motors, len(dc.Motors))
		}

		// No pin may be used twice, and none may collide with the bus pins
		sda, scl, err := cfg.BusPins()
		if err != nil {
			t.Fatalf("Preset %s bus pins: %v", tt.name, err)
		}
		used := map[core.GPIOPin]bool{sda: true, scl: true}
		for i, m := range dc.Motors {
			if m.Kind != tt.kind {
				t.Errorf("Preset %s motor %d: expected %v, got %v", tt.name, i, tt.kind, m.Kind)
			}
			p := m.Pins
			for _, pin := range []core.GPIOPin{p.Step, p.Dir, p.Reset, p.MS1, p.MS2, p.MS3, p.Fault, p.Limit, p.Phases[0], p.Phases[1], p.Phases[2], p.Phases[3]} {
				if !pin.Valid() {
					continue
				}
				if used[pin] {
					t.Errorf("Preset %s: pin %d used twice", tt.name, pin)
				}
				used[pin] = true
			}
		}
	}

	if _, err := Preset("b9"); !errors.Is(err, errUnknownBoard) {
		t.Errorf("Expected unknown board error, got %v", err)
	}
	if names := PresetNames(); len(names) != 3 || names[0] != "b1" {
		t.Errorf("Unexpected preset names %v", names)
	}
}
