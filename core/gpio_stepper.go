package core

// MotorPins maps one motor's signals to GPIO pins. Unfitted optional pins are NoPin.
type MotorPins struct {
	// Bipolar driver chip
	Step  GPIOPin
	Dir   GPIOPin
	Reset GPIOPin // driver enabled when high
	MS1   GPIOPin
	MS2   GPIOPin
	MS3   GPIOPin
	Fault GPIOPin // active low

	// Unipolar coil outputs, one per winding
	Phases [4]GPIOPin

	// Home switch
	Limit GPIOPin

	InvertDir bool
}

// UnusedPins returns a pin map with every pin unfitted
func UnusedPins() MotorPins {
	return MotorPins{
		Step: NoPin, Dir: NoPin, Reset: NoPin,
		MS1: NoPin, MS2: NoPin, MS3: NoPin,
		Fault:  NoPin,
		Phases: [4]GPIOPin{NoPin, NoPin, NoPin, NoPin},
		Limit:  NoPin,
	}
}

// microstepSelect holds the MS1..MS3 levels for each microstep level
var microstepSelect = [MaxMicrostep + 1][3]bool{
	0: {false, false, false}, // full
	1: {true, false, false},  // half
	2: {false, true, false},  // quarter
	3: {true, true, false},   // eighth
}

// BipolarDriver drives a step/dir driver chip through GPIO
type BipolarDriver struct {
	gpio GPIODriver
	pins MotorPins
}

// NewBipolarDriver creates a GPIO-based bipolar backend
func NewBipolarDriver(gpio GPIODriver, pins MotorPins) *BipolarDriver {
	return &BipolarDriver{gpio: gpio, pins: pins}
}

// Init configures the pins
func (b *BipolarDriver) Init() error {
	for _, pin := range []GPIOPin{b.pins.Step, b.pins.Dir, b.pins.Reset, b.pins.MS1, b.pins.MS2, b.pins.MS3} {
		if !pin.Valid() {
			continue
		}
		if err := b.gpio.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	if b.pins.Fault.Valid() {
		if err := b.gpio.ConfigureInputPullUp(b.pins.Fault); err != nil {
			return err
		}
	}
	if err := configureLimit(b.gpio, b.pins.Limit); err != nil {
		return err
	}

	b.setPin(b.pins.Step, false)
	b.Energize(false)
	b.SetMicrostep(MaxMicrostep)
	DebugPrintln("[GPIO] Bipolar motor initialized: step=" + Utoa(uint32(b.pins.Step)) + " dir=" + Utoa(uint32(b.pins.Dir)))
	return nil
}

func (b *BipolarDriver) setPin(pin GPIOPin, v bool) {
	if pin.Valid() {
		b.gpio.SetPin(pin, v)
	}
}

// Step generates a single step pulse
func (b *BipolarDriver) Step() {
	b.setPin(b.pins.Step, true)
	b.setPin(b.pins.Step, false)
}

// SetDirection sets the direction output
func (b *BipolarDriver) SetDirection(forward bool) {
	b.setPin(b.pins.Dir, forward != b.pins.InvertDir)
}

// SetMicrostep drives the microstep select pins
func (b *BipolarDriver) SetMicrostep(level uint8) {
	if level > MaxMicrostep {
		level = MaxMicrostep
	}
	ms := microstepSelect[level]
	b.setPin(b.pins.MS1, ms[0])
	b.setPin(b.pins.MS2, ms[1])
	b.setPin(b.pins.MS3, ms[2])
}

// SetPhase is a no-op for step/dir drivers
func (b *BipolarDriver) SetPhase(phase uint8) {}

// Energize drives the reset pin
func (b *BipolarDriver) Energize(on bool) {
	b.setPin(b.pins.Reset, on)
}

// Faulted reads the active-low fault output
func (b *BipolarDriver) Faulted() bool {
	if !b.pins.Fault.Valid() {
		return false
	}
	return !b.gpio.ReadPin(b.pins.Fault)
}

// LimitLevel reads the home switch
func (b *BipolarDriver) LimitLevel() (bool, bool) {
	return readLimit(b.gpio, b.pins.Limit)
}

func (b *BipolarDriver) Name() string {
	return "gpio-bipolar"
}

// unipolarPattern is the two-coils-on full step sequence, one bit per winding
var unipolarPattern = [4]uint8{0b0011, 0b0110, 0b1100, 0b1001}

// UnipolarDriver drives four windings through GPIO
type UnipolarDriver struct {
	gpio      GPIODriver
	pins      MotorPins
	phase     uint8
	energized bool
}

// NewUnipolarDriver creates a GPIO-based unipolar backend
func NewUnipolarDriver(gpio GPIODriver, pins MotorPins) *UnipolarDriver {
	return &UnipolarDriver{gpio: gpio, pins: pins}
}

// Init configures the coil outputs
func (u *UnipolarDriver) Init() error {
	for _, pin := range u.pins.Phases {
		if !pin.Valid() {
			continue
		}
		if err := u.gpio.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	if err := configureLimit(u.gpio, u.pins.Limit); err != nil {
		return err
	}
	u.Energize(false)
	return nil
}

func (u *UnipolarDriver) drive(pattern uint8) {
	for i, pin := range u.pins.Phases {
		if pin.Valid() {
			u.gpio.SetPin(pin, pattern&(1<<i) != 0)
		}
	}
}

// Step outputs the latched phase pattern
func (u *UnipolarDriver) Step() {
	if u.energized {
		u.drive(unipolarPattern[u.phase])
	}
}

// SetDirection is a no-op; direction is encoded in the phase sequence
func (u *UnipolarDriver) SetDirection(forward bool) {}

// SetMicrostep is a no-op for unipolar motors
func (u *UnipolarDriver) SetMicrostep(level uint8) {}

// SetPhase latches the next phase for Step
func (u *UnipolarDriver) SetPhase(phase uint8) {
	u.phase = phase & 0x03
}

// Energize holds the current phase or releases all windings
func (u *UnipolarDriver) Energize(on bool) {
	u.energized = on
	if on {
		u.drive(unipolarPattern[u.phase])
	} else {
		u.drive(0)
	}
}

// Faulted always returns false, unipolar boards have no fault output
func (u *UnipolarDriver) Faulted() bool {
	return false
}

// LimitLevel reads the home switch
func (u *UnipolarDriver) LimitLevel() (bool, bool) {
	return readLimit(u.gpio, u.pins.Limit)
}

func (u *UnipolarDriver) Name() string {
	return "gpio-unipolar"
}

func configureLimit(gpio GPIODriver, pin GPIOPin) error {
	if !pin.Valid() {
		return nil
	}
	return gpio.ConfigureInputPullUp(pin)
}

func readLimit(gpio GPIODriver, pin GPIOPin) (bool, bool) {
	if !pin.Valid() {
		return false, false
	}
	return gpio.ReadPin(pin), true
}
