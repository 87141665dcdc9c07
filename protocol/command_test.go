package protocol

import (
	"bytes"
	"testing"
)

func TestClassifyAllLeadingBytes(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		kind, length, err := Classify(b)

		var wantKind Kind
		var wantLen int
		switch {
		case b >= 0x80:
			wantKind, wantLen = KindMove, MoveLen
		case b >= 0x40:
			wantKind, wantLen = KindSpeedMove, SpeedMoveLen
		case b >= 0x08 && b <= 0x0F:
			wantKind, wantLen = KindAccelSpeedMove, AccelSpeedMoveLen
		case b == 0x10:
			wantKind, wantLen = KindStartHoming, 1
		case b == 0x11:
			wantKind, wantLen = KindArmTestPosition, 1
		case b == 0x12 || b == 0x13:
			wantKind, wantLen = KindSoftStop, 1
		case b == 0x14:
			wantKind, wantLen = KindHardStop, 1
		case b == 0x15:
			wantKind, wantLen = KindMotorOn, 1
		case b == 0x16:
			wantKind, wantLen = KindFakeHome, 1
		case b == 0x1F:
			wantKind, wantLen = KindLoadSettings, LoadSettingsMaxLen
		}

		if wantKind == KindNone {
			if err != ErrCommandData {
				t.Errorf("0x%02X: expected ErrCommandData, got kind=%v err=%v", b, kind, err)
			}
			continue
		}
		if err != nil || kind != wantKind || length != wantLen {
			t.Errorf("0x%02X: expected %v/%d, got %v/%d err=%v", b, wantKind, wantLen, kind, length, err)
		}
	}
}

func TestDecodeMove(t *testing.T) {
	cmd, err := Decode([]byte{0xBE, 0x80})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cmd.Kind != KindMove || cmd.Target != 0x3E80 {
		t.Errorf("Expected move to 16000, got %v to %d", cmd.Kind, cmd.Target)
	}
	if cmd.Speed != 0 {
		t.Errorf("Expected default speed, got %d", cmd.Speed)
	}
}

func TestDecodeSpeedMove(t *testing.T) {
	cmd, err := Decode([]byte{0x40 | 12, 0x01, 0x00})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cmd.Kind != KindSpeedMove || cmd.Speed != 12*256 || cmd.Target != 256 {
		t.Errorf("Unexpected command: %+v", cmd)
	}

	if _, err := Decode([]byte{0x40, 0x80, 0x00}); err != ErrCommandData {
		t.Errorf("Expected ErrCommandData for 16-bit address, got %v", err)
	}
}

func TestDecodeAccelSpeedMove(t *testing.T) {
	cmd, err := Decode([]byte{0x0B, 0x0F, 0xA0, 0x3E, 0x80})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cmd.Kind != KindAccelSpeedMove || cmd.AccelCode != 3 || cmd.Speed != 4000 || cmd.Target != 16000 {
		t.Errorf("Unexpected command: %+v", cmd)
	}
}

func TestDecodeWrongLength(t *testing.T) {
	inputs := [][]byte{
		{0x80},
		{0x80, 0x00, 0x00},
		{0x0B, 0x0F, 0xA0},
		{0x14, 0x00},
		{},
	}
	for _, in := range inputs {
		if _, err := Decode(in); err != ErrCommandData {
			t.Errorf("Decode(% X): expected ErrCommandData, got %v", in, err)
		}
	}
}

func TestDecodeLoadSettings(t *testing.T) {
	cmd, err := Decode([]byte{0x1F, 0x00, 0x03, 0x0F, 0xA0})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cmd.SettingCount != 2 || cmd.Settings[0] != 3 || cmd.Settings[1] != 4000 {
		t.Errorf("Unexpected settings: %+v", cmd)
	}
	if cmd.HasLimitControl {
		t.Error("Expected no limit control")
	}

	// Byte form after all eight words
	data := []byte{0x1F}
	for i := 0; i < MaxSettingWords; i++ {
		data = append(data, 0, byte(i))
	}
	cmd, err = Decode(append(data, 0x15))
	if err != nil {
		t.Fatalf("Decode 18-byte form failed: %v", err)
	}
	if cmd.SettingCount != 8 || !cmd.HasLimitControl || cmd.LimitWord || cmd.LimitControl != 0x15 {
		t.Errorf("Unexpected 18-byte decode: %+v", cmd)
	}

	// Word form
	cmd, err = Decode(append(data, 0x00, 0x15))
	if err != nil {
		t.Fatalf("Decode 19-byte form failed: %v", err)
	}
	if !cmd.LimitWord || cmd.LimitControl != 0x15 {
		t.Errorf("Unexpected 19-byte decode: %+v", cmd)
	}

	// Odd payload before the eighth word is malformed
	if _, err := Decode([]byte{0x1F, 0x00, 0x03, 0x01}); err != ErrCommandData {
		t.Errorf("Expected ErrCommandData for partial word, got %v", err)
	}
	if _, err := Decode([]byte{0x1F, 0x00}); err != ErrCommandData {
		t.Errorf("Expected ErrCommandData for 2-byte settings, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	full := LoadSettings(3, 4000, 200, 32000, 1000, 500, 100, 0)
	commands := []Command{
		Move(0),
		Move(16000),
		Move(MaxPosition),
		SpeedMove(1234, 63*256),
		AccelSpeedMove(16000, 4000, 3),
		AccelSpeedMove(MaxPosition, 0xFFFF, 7),
		Control(OpStartHoming),
		Control(OpArmTestPosition),
		Control(OpSoftStop),
		Control(OpSoftStopReset),
		Control(OpHardStop),
		Control(OpMotorOn),
		Control(OpFakeHome),
		LoadSettings(3),
		full,
		full.WithLimitControl(0x0D),
	}

	for _, cmd := range commands {
		wire := Encode(nil, cmd)
		got, err := Decode(wire)
		if err != nil {
			t.Errorf("%v: decode of % X failed: %v", cmd.Kind, wire, err)
			continue
		}
		if got != cmd {
			t.Errorf("%v: round trip mismatch\n got  %+v\n want %+v", cmd.Kind, got, cmd)
		}
		if again := Encode(nil, got); !bytes.Equal(again, wire) {
			t.Errorf("%v: re-encode mismatch: % X vs % X", cmd.Kind, again, wire)
		}
	}
}

func TestRoundTripFromWire(t *testing.T) {
	word := []byte{0x1F}
	for i := 0; i < MaxSettingWords; i++ {
		word = append(word, byte(i), 0xFF)
	}
	word = append(word, 0x00, 0x1A)

	inputs := [][]byte{
		{0x10},
		{0x1F, 0x12, 0x34},
		word,
	}
	for _, in := range inputs {
		cmd, err := Decode(in)
		if err != nil {
			t.Errorf("Decode(% X) failed: %v", in, err)
			continue
		}
		if out := Encode(nil, cmd); !bytes.Equal(out, in) {
			t.Errorf("Encode(Decode(% X)) = % X", in, out)
		}
	}
}
