package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stepbus/core"
)

// SettingsConfig holds the power-on motor settings. Zero speeds fall back to
// the defaults; AccelCode is a pointer since code 0 (no ramp) is valid.
type SettingsConfig struct {
	AccelCode         *uint8 `json:"accel_code,omitempty"`
	DefaultSpeed      uint16 `json:"default_speed,omitempty"`
	Floor             uint16 `json:"floor,omitempty"`
	MaxPosition       uint16 `json:"max_position,omitempty"`
	HomingSpeed       uint16 `json:"homing_speed,omitempty"`
	HomingBackupSpeed uint16 `json:"homing_backup_speed,omitempty"`
	HomeOffset        uint16 `json:"home_offset,omitempty"`
	HomePosition      uint16 `json:"home_position,omitempty"`
	LimitControl      uint8  `json:"limit_control,omitempty"`
}

// MotorConfig describes one motor and its pins. Pins are named "GP<n>",
// "gpio<n>" or "<n>"; an empty name means not fitted.
type MotorConfig struct {
	Kind      string   `json:"kind"` // "bipolar" or "unipolar"
	StepPin   string   `json:"step_pin,omitempty"`
	DirPin    string   `json:"dir_pin,omitempty"`
	ResetPin  string   `json:"reset_pin,omitempty"`
	MS1Pin    string   `json:"ms1_pin,omitempty"`
	MS2Pin    string   `json:"ms2_pin,omitempty"`
	MS3Pin    string   `json:"ms3_pin,omitempty"`
	FaultPin  string   `json:"fault_pin,omitempty"`
	PhasePins []string `json:"phase_pins,omitempty"`
	LimitPin  string   `json:"limit_pin,omitempty"`
	InvertDir bool     `json:"invert_dir,omitempty"`

	Settings SettingsConfig `json:"settings"`
}

// BoardConfig describes a controller board
type BoardConfig struct {
	Name         string        `json:"name"`
	BaseAddress  uint8         `json:"base_address"`
	TableFloor   uint16        `json:"table_floor,omitempty"`
	LimitSamples uint8         `json:"limit_samples,omitempty"`
	SDAPin       string        `json:"sda_pin,omitempty"`
	SCLPin       string        `json:"scl_pin,omitempty"`
	Motors       []MotorConfig `json:"motors"`
}

var (
	errNoMotors     = errors.New("board has no motors")
	errBaseAddress  = errors.New("base address outside the 7-bit bus range")
	errPhaseCount   = errors.New("unipolar motor needs four phase pins")
	errStepDirPins  = errors.New("bipolar motor needs step and dir pins")
	errUnknownKind  = errors.New("unknown motor kind")
	errUnknownBoard = errors.New("unknown board preset")
)

// LoadConfig parses a JSON board description
func LoadConfig(jsonData []byte) (*BoardConfig, error) {
	var config BoardConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *BoardConfig) {
	if config.Name == "" {
		config.Name = "custom"
	}
	if config.LimitSamples == 0 {
		config.LimitSamples = 4
	}
	if config.SDAPin == "" {
		config.SDAPin = "GP0"
	}
	if config.SCLPin == "" {
		config.SCLPin = "GP1"
	}

	def := core.DefaultSettings()
	for i := range config.Motors {
		motor := &config.Motors[i]
		if motor.Kind == "" {
			motor.Kind = "bipolar"
		}
		s := &motor.Settings
		if s.AccelCode == nil {
			code := def.AccelCode
			s.AccelCode = &code
		}
		if s.DefaultSpeed == 0 {
			s.DefaultSpeed = def.DefaultSpeed
		}
		if s.Floor == 0 {
			s.Floor = def.Floor
		}
		if s.MaxPosition == 0 {
			s.MaxPosition = def.MaxPosition
		}
		if s.HomingSpeed == 0 {
			s.HomingSpeed = def.HomingSpeed
		}
		if s.HomingBackupSpeed == 0 {
			s.HomingBackupSpeed = def.HomingBackupSpeed
		}
	}

	// The table floor may not exceed any motor's floor
	if config.TableFloor == 0 && len(config.Motors) > 0 {
		floor := config.Motors[0].Settings.Floor
		for _, motor := range config.Motors[1:] {
			if motor.Settings.Floor < floor {
				floor = motor.Settings.Floor
			}
		}
		config.TableFloor = floor
	}
}

// Validate checks the board for problems NewDevice would not catch
func (c *BoardConfig) Validate() error {
	if len(c.Motors) == 0 {
		return errNoMotors
	}
	if int(c.BaseAddress)+len(c.Motors)-1 > 0x7F {
		return errBaseAddress
	}
	for i, motor := range c.Motors {
		switch motor.Kind {
		case "bipolar":
			if motor.StepPin == "" || motor.DirPin == "" {
				return fmt.Errorf("motor %d: %w", i, errStepDirPins)
			}
		case "unipolar":
			if len(motor.PhasePins) != 4 {
				return fmt.Errorf("motor %d: %w", i, errPhaseCount)
			}
		default:
			return fmt.Errorf("motor %d: %w: %q", i, errUnknownKind, motor.Kind)
		}
	}
	return nil
}

// DeviceConfig converts the board description for core.NewDevice
func (c *BoardConfig) DeviceConfig() (core.DeviceConfig, error) {
	dc := core.DeviceConfig{
		BaseAddress: c.BaseAddress,
		TableFloor:  c.TableFloor,
		Motors:      make([]core.MotorConfig, len(c.Motors)),
	}
	for i, motor := range c.Motors {
		pins, err := motor.pins()
		if err != nil {
			return core.DeviceConfig{}, fmt.Errorf("motor %d: %w", i, err)
		}
		kind := core.Bipolar
		if motor.Kind == "unipolar" {
			kind = core.Unipolar
		}
		dc.Motors[i] = core.MotorConfig{
			Kind:         kind,
			Pins:         pins,
			Settings:     motor.Settings.settings(),
			LimitSamples: c.LimitSamples,
		}
	}
	return dc, nil
}

// BusPins returns the I2C data and clock pins
func (c *BoardConfig) BusPins() (sda, scl core.GPIOPin, err error) {
	if sda, err = ParsePin(c.SDAPin); err != nil {
		return
	}
	scl, err = ParsePin(c.SCLPin)
	return
}

func (m *MotorConfig) pins() (core.MotorPins, error) {
	pins := core.UnusedPins()
	named := []struct {
		name string
		pin  *core.GPIOPin
	}{
		{m.StepPin, &pins.Step},
		{m.DirPin, &pins.Dir},
		{m.ResetPin, &pins.Reset},
		{m.MS1Pin, &pins.MS1},
		{m.MS2Pin, &pins.MS2},
		{m.MS3Pin, &pins.MS3},
		{m.FaultPin, &pins.Fault},
		{m.LimitPin, &pins.Limit},
	}
	for i, name := range m.PhasePins {
		if i < len(pins.Phases) {
			named = append(named, struct {
				name string
				pin  *core.GPIOPin
			}{name, &pins.Phases[i]})
		}
	}
	for _, n := range named {
		pin, err := ParsePin(n.name)
		if err != nil {
			return pins, err
		}
		*n.pin = pin
	}
	pins.InvertDir = m.InvertDir
	return pins, nil
}

func (s *SettingsConfig) settings() core.Settings {
	out := core.DefaultSettings()
	if s.AccelCode != nil {
		out.AccelCode = *s.AccelCode & 0x07
	}
	out.DefaultSpeed = s.DefaultSpeed
	out.Floor = s.Floor
	out.MaxPosition = s.MaxPosition
	out.HomingSpeed = s.HomingSpeed
	out.HomingBackupSpeed = s.HomingBackupSpeed
	out.HomeOffset = s.HomeOffset
	out.HomePosition = s.HomePosition
	out.LimitControl = core.LimitControl(s.LimitControl & 0x1F)
	return out
}

// ParsePin converts a pin name to a pin number. An empty name is core.NoPin.
func ParsePin(name string) (core.GPIOPin, error) {
	if name == "" {
		return core.NoPin, nil
	}
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "gpio")
	s = strings.TrimPrefix(s, "gp")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 29 {
		return core.NoPin, fmt.Errorf("invalid pin %q", name)
	}
	return core.GPIOPin(n), nil
}
