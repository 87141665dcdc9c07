package protocol

// Kind identifies the variant carried by a Command
type Kind uint8

const (
	KindNone Kind = iota
	KindMove
	KindSpeedMove
	KindAccelSpeedMove
	KindStartHoming
	KindArmTestPosition
	KindSoftStop
	KindHardStop
	KindMotorOn
	KindFakeHome
	KindLoadSettings
)

var kindNames = [...]string{
	KindNone:            "none",
	KindMove:            "move",
	KindSpeedMove:       "speed_move",
	KindAccelSpeedMove:  "accel_speed_move",
	KindStartHoming:     "start_homing",
	KindArmTestPosition: "arm_test_position",
	KindSoftStop:        "soft_stop",
	KindHardStop:        "hard_stop",
	KindMotorOn:         "motor_on",
	KindFakeHome:        "fake_home",
	KindLoadSettings:    "load_settings",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Single-byte opcodes
const (
	OpStartHoming     = 0x10
	OpArmTestPosition = 0x11
	OpSoftStop        = 0x12
	OpSoftStopReset   = 0x13
	OpHardStop        = 0x14
	OpMotorOn         = 0x15
	OpFakeHome        = 0x16
	OpLoadSettings    = 0x1F
)

// Opcode prefixes for the multi-byte motion commands
const (
	moveFlag           = 0x80 // 1aaaaaaa aaaaaaaa
	speedMoveMask      = 0xC0
	speedMoveFlag      = 0x40 // 01ssssss 0aaaaaaa aaaaaaaa
	accelSpeedMoveMask = 0xF8
	accelSpeedMoveFlag = 0x08 // 00001ccc ssssssss ssssssss 0aaaaaaa aaaaaaaa
)

// Command lengths in bytes, opcode included
const (
	MoveLen           = 2
	SpeedMoveLen      = 3
	AccelSpeedMoveLen = 5
	ControlLen        = 1

	// LoadSettings carries up to MaxSettingWords words, optionally followed
	// by the limit-switch control as a packed byte or as a full word
	LoadSettingsMinLen = 3
	LoadSettingsMaxLen = 1 + 2*MaxSettingWords + 2
	MaxCommandLen      = LoadSettingsMaxLen
)

// MaxSettingWords is the number of 16-bit values a LoadSettings command can update
const MaxSettingWords = 8

// SpeedMoveUnit is the step-rate granularity of the 6-bit SpeedMove speed field
const SpeedMoveUnit = 256

// Command is one decoded bus command for a single motor.
// Only the fields relevant to Kind are meaningful.
type Command struct {
	Kind Kind

	// Move, SpeedMove, AccelSpeedMove
	Target    uint16 // 15-bit absolute position
	Speed     uint16 // steps/s, 0 selects the motor's default speed
	AccelCode uint8  // AccelSpeedMove only

	// SoftStop
	Reset bool // de-energize once stopped

	// LoadSettings
	Settings        [MaxSettingWords]uint16
	SettingCount    uint8
	HasLimitControl bool
	LimitControl    uint8
	LimitWord       bool // limit control was sent as a 16-bit word
}

// Classify returns the command kind and total byte length implied by a
// leading byte. LoadSettings reports its maximum length.
func Classify(lead byte) (Kind, int, error) {
	switch {
	case lead&moveFlag != 0:
		return KindMove, MoveLen, nil
	case lead&speedMoveMask == speedMoveFlag:
		return KindSpeedMove, SpeedMoveLen, nil
	case lead&accelSpeedMoveMask == accelSpeedMoveFlag:
		return KindAccelSpeedMove, AccelSpeedMoveLen, nil
	}

	switch lead {
	case OpStartHoming:
		return KindStartHoming, ControlLen, nil
	case OpArmTestPosition:
		return KindArmTestPosition, ControlLen, nil
	case OpSoftStop, OpSoftStopReset:
		return KindSoftStop, ControlLen, nil
	case OpHardStop:
		return KindHardStop, ControlLen, nil
	case OpMotorOn:
		return KindMotorOn, ControlLen, nil
	case OpFakeHome:
		return KindFakeHome, ControlLen, nil
	case OpLoadSettings:
		return KindLoadSettings, LoadSettingsMaxLen, nil
	}
	return KindNone, 0, ErrCommandData
}

// IsMotion reports whether the command starts a positioning move
func (c *Command) IsMotion() bool {
	return c.Kind == KindMove || c.Kind == KindSpeedMove || c.Kind == KindAccelSpeedMove
}

// IsStop reports whether the command halts the motor
func (c *Command) IsStop() bool {
	return c.Kind == KindSoftStop || c.Kind == KindHardStop
}
