package core

// MotorDriver is the hardware abstraction for one motor's driver outputs
// and sensor inputs. Implementations can use GPIO, PIO, or other methods.
type MotorDriver interface {
	// Init configures the pins and leaves the motor de-energized
	Init() error

	// Step emits one step: a pulse on the step output (bipolar) or the
	// phase pattern latched by SetPhase (unipolar).
	// Called from the tick interrupt, so it must be fast.
	Step()

	// SetDirection sets the direction output, true = increasing position
	SetDirection(forward bool)

	// SetMicrostep selects the microstep resolution (MinMicrostep..MaxMicrostep).
	// Bipolar only.
	SetMicrostep(level uint8)

	// SetPhase latches the next phase (0-3) for Step. Unipolar only.
	SetPhase(phase uint8)

	// Energize takes the driver out of reset (true) or puts it into reset
	// with the windings off (false)
	Energize(on bool)

	// Faulted reports the driver chip's fault output
	Faulted() bool

	// LimitLevel returns the raw limit switch pin level. present is false
	// when no switch is fitted.
	LimitLevel() (level bool, present bool)

	// Name returns the backend implementation name
	Name() string
}

// MotorKind selects the drive electronics of a motor
type MotorKind uint8

const (
	Bipolar MotorKind = iota
	Unipolar
)

func (k MotorKind) String() string {
	if k == Unipolar {
		return "unipolar"
	}
	return "bipolar"
}

// Microstep levels for bipolar drivers. A position unit is 1/8 step, so a
// pulse at level n moves 1 << (MaxMicrostep - n) units.
const (
	MinMicrostep = 1 // half step, 4 units per pulse
	MaxMicrostep = 3 // eighth step, 1 unit per pulse
)

// stepUnits returns the position units moved by one pulse at a microstep level
func stepUnits(level uint8) int16 {
	return 1 << (MaxMicrostep - level)
}
