package core

import (
	"stepbus/protocol"
	"stepbus/x/mathx"
)

// LimitControl packs the limit switch behaviour as 00sslee:
//
//	ss  start direction: 0 reverse, 1 forward,
//	    2 reverse when the switch is active else forward, 3 the opposite of 2
//	l   switch active level: 0 low, 1 high
//	ee  forced ending side: 0 none, 1 switch active, 2 switch not active
type LimitControl uint8

// Start direction values
const (
	StartReverse      = 0
	StartForward      = 1
	StartLimitActive  = 2
	StartLimitPassive = 3
)

// Forced ending side values
const (
	EndAny      = 0
	EndActive   = 1
	EndInactive = 2
)

func (c LimitControl) StartDir() uint8 { return uint8(c>>3) & 0x03 }
func (c LimitControl) ActiveHigh() bool { return c&0x04 != 0 }
func (c LimitControl) ForceEnd() uint8  { return uint8(c) & 0x03 }

// NewLimitControl packs the limit switch fields
func NewLimitControl(startDir uint8, activeHigh bool, forceEnd uint8) LimitControl {
	c := LimitControl(startDir&0x03)<<3 | LimitControl(forceEnd&0x03)
	if activeHigh {
		c |= 0x04
	}
	return c
}

// Settings are the per-motor values loadable over the bus. Speeds are in
// position units (1/8 step or one unipolar phase) per second.
type Settings struct {
	AccelCode         uint8  // index into the acceleration rate table, 0 = no ramp
	DefaultSpeed      uint16 // speed used by Move
	Floor             uint16 // no-acceleration speed, also the start/stop speed
	MaxPosition       uint16 // minimum position is always zero
	HomingSpeed       uint16
	HomingBackupSpeed uint16
	HomeOffset        uint16 // distance moved away from the switch after backing off
	HomePosition      uint16 // position assigned once homed
	LimitControl      LimitControl
}

// DefaultSettings returns the power-on settings
func DefaultSettings() Settings {
	return Settings{
		AccelCode:         3,
		DefaultSpeed:      4000,
		Floor:             200,
		MaxPosition:       32000,
		HomingSpeed:       1000,
		HomingBackupSpeed: 60,
		HomeOffset:        20,
		HomePosition:      0,
	}
}

// Load applies a LoadSettings command: only the words present are updated,
// in wire order.
func (s *Settings) Load(cmd *protocol.Command) {
	for i := uint8(0); i < cmd.SettingCount; i++ {
		v := cmd.Settings[i]
		switch i {
		case 0:
			s.AccelCode = uint8(v) & 0x07
		case 1:
			s.DefaultSpeed = v
		case 2:
			s.Floor = v
		case 3:
			s.MaxPosition = v
		case 4:
			s.HomingSpeed = v
		case 5:
			s.HomingBackupSpeed = v
		case 6:
			s.HomeOffset = v
		case 7:
			s.HomePosition = v
		}
	}
	if cmd.HasLimitControl {
		s.LimitControl = LimitControl(cmd.LimitControl & 0x1F)
	}
	s.sanitize()
}

// sanitize keeps the values usable by the profile engine
func (s *Settings) sanitize() {
	s.Floor = mathx.Max(s.Floor, 1)
	s.MaxPosition = mathx.Min(s.MaxPosition, protocol.MaxPosition)
	s.HomePosition = mathx.Min(s.HomePosition, s.MaxPosition)
	s.HomingSpeed = mathx.Max(s.HomingSpeed, 1)
	s.HomingBackupSpeed = mathx.Max(s.HomingBackupSpeed, 1)
}

// Words returns the settings in LoadSettings order
func (s *Settings) Words() [protocol.MaxSettingWords]uint16 {
	return [protocol.MaxSettingWords]uint16{
		uint16(s.AccelCode),
		s.DefaultSpeed,
		s.Floor,
		s.MaxPosition,
		s.HomingSpeed,
		s.HomingBackupSpeed,
		s.HomeOffset,
		s.HomePosition,
	}
}
