package protocol

// Encode appends the wire form of cmd to dst and returns the extended slice.
// It is the inverse of Decode for every command Decode accepts.
func Encode(dst []byte, cmd Command) []byte {
	switch cmd.Kind {
	case KindMove:
		return append(dst, moveFlag|byte(cmd.Target>>8)&0x7F, byte(cmd.Target))
	case KindSpeedMove:
		s := byte(cmd.Speed/SpeedMoveUnit) & 0x3F
		return append(dst, speedMoveFlag|s, byte(cmd.Target>>8)&0x7F, byte(cmd.Target))
	case KindAccelSpeedMove:
		return append(dst,
			accelSpeedMoveFlag|cmd.AccelCode&0x07,
			byte(cmd.Speed>>8), byte(cmd.Speed),
			byte(cmd.Target>>8)&0x7F, byte(cmd.Target))
	case KindStartHoming:
		return append(dst, OpStartHoming)
	case KindArmTestPosition:
		return append(dst, OpArmTestPosition)
	case KindSoftStop:
		if cmd.Reset {
			return append(dst, OpSoftStopReset)
		}
		return append(dst, OpSoftStop)
	case KindHardStop:
		return append(dst, OpHardStop)
	case KindMotorOn:
		return append(dst, OpMotorOn)
	case KindFakeHome:
		return append(dst, OpFakeHome)
	case KindLoadSettings:
		dst = append(dst, OpLoadSettings)
		for i := uint8(0); i < cmd.SettingCount && i < MaxSettingWords; i++ {
			dst = append(dst, byte(cmd.Settings[i]>>8), byte(cmd.Settings[i]))
		}
		if cmd.HasLimitControl {
			if cmd.LimitWord {
				dst = append(dst, 0)
			}
			dst = append(dst, cmd.LimitControl)
		}
		return dst
	}
	return dst
}

// Move builds a Move command at the motor's default speed
func Move(target uint16) Command {
	return Command{Kind: KindMove, Target: target}
}

// SpeedMove builds a SpeedMove command. Speed is truncated to a multiple of SpeedMoveUnit.
func SpeedMove(target, speed uint16) Command {
	return Command{Kind: KindSpeedMove, Target: target, Speed: speed / SpeedMoveUnit * SpeedMoveUnit}
}

// AccelSpeedMove builds an AccelSpeedMove command
func AccelSpeedMove(target, speed uint16, accelCode uint8) Command {
	return Command{Kind: KindAccelSpeedMove, Target: target, Speed: speed, AccelCode: accelCode & 0x07}
}

// Control builds one of the single-byte commands from its opcode
func Control(op byte) Command {
	cmd, _ := Decode([]byte{op})
	return cmd
}

// LoadSettings builds a LoadSettings command updating the first len(words) settings
func LoadSettings(words ...uint16) Command {
	cmd := Command{Kind: KindLoadSettings}
	for _, w := range words {
		if cmd.SettingCount == MaxSettingWords {
			break
		}
		cmd.Settings[cmd.SettingCount] = w
		cmd.SettingCount++
	}
	return cmd
}

// WithLimitControl attaches the packed limit-switch control byte. It is only
// sent when all eight setting words are present.
func (c Command) WithLimitControl(ctrl uint8) Command {
	c.HasLimitControl = true
	c.LimitControl = ctrl
	return c
}
