package config

import (
	"fmt"
	"sort"
)

// The preset boards are the standard rp2040 controller builds b1, b3 and u6.
// MS3 is tied low on the preset boards since eighth stepping needs only
// MS1 and MS2.
var presets = map[string]func() *BoardConfig{
	"b1": B1Config,
	"b3": B3Config,
	"u6": U6Config,
}

// Preset returns a copy of a named board preset
func Preset(name string) (*BoardConfig, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownBoard, name)
	}
	config := build()
	applyDefaults(config)
	return config, nil
}

// PresetNames lists the available presets in order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func bipolarMotor(step, dir, reset, ms1, ms2, fault int, limit string) MotorConfig {
	return MotorConfig{
		Kind:     "bipolar",
		StepPin:  gp(step),
		DirPin:   gp(dir),
		ResetPin: gp(reset),
		MS1Pin:   gp(ms1),
		MS2Pin:   gp(ms2),
		FaultPin: gp(fault),
		LimitPin: limit,
		Settings: SettingsConfig{HomeOffset: 20},
	}
}

func unipolarMotor(first int, limit string) MotorConfig {
	return MotorConfig{
		Kind:      "unipolar",
		PhasePins: []string{gp(first), gp(first + 1), gp(first + 2), gp(first + 3)},
		LimitPin:  limit,
		Settings:  SettingsConfig{HomeOffset: 20, DefaultSpeed: 400, Floor: 50, HomingSpeed: 200, HomingBackupSpeed: 20},
	}
}

func gp(n int) string {
	return fmt.Sprintf("GP%d", n)
}

// B1Config is the single bipolar motor board at bus address 0x08
func B1Config() *BoardConfig {
	return &BoardConfig{
		Name:        "b1",
		BaseAddress: 0x08,
		Motors: []MotorConfig{
			bipolarMotor(2, 3, 4, 5, 6, 7, "GP8"),
		},
	}
}

// B3Config is the three bipolar motor board at bus addresses 0x10-0x12.
// The middle motor has no home switch.
func B3Config() *BoardConfig {
	return &BoardConfig{
		Name:        "b3",
		BaseAddress: 0x10,
		Motors: []MotorConfig{
			bipolarMotor(2, 3, 4, 5, 6, 7, "GP26"),
			bipolarMotor(8, 9, 10, 11, 12, 13, ""),
			bipolarMotor(14, 15, 16, 17, 18, 19, "GP27"),
		},
	}
}

// U6Config is the six unipolar motor board at bus addresses 0x18-0x1D.
// Only the fifth motor has a home switch.
func U6Config() *BoardConfig {
	return &BoardConfig{
		Name:        "u6",
		BaseAddress: 0x18,
		Motors: []MotorConfig{
			unipolarMotor(2, ""),
			unipolarMotor(6, ""),
			unipolarMotor(10, ""),
			unipolarMotor(14, ""),
			unipolarMotor(18, "GP29"),
			unipolarMotor(24, ""),
		},
	}
}
