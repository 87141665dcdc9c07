package protocol

// Decode parses one complete command. The slice must hold exactly the
// bytes of a single bus write.
func Decode(data []byte) (Command, error) {
	var cmd Command
	if len(data) == 0 {
		return cmd, ErrCommandData
	}

	kind, length, err := Classify(data[0])
	if err != nil {
		return cmd, err
	}
	if kind == KindLoadSettings {
		return decodeSettings(data)
	}
	if len(data) != length {
		return cmd, ErrCommandData
	}

	cmd.Kind = kind
	switch kind {
	case KindMove:
		cmd.Target = uint16(data[0]&^moveFlag)<<8 | uint16(data[1])
	case KindSpeedMove:
		if data[1]&0x80 != 0 {
			return Command{}, ErrCommandData
		}
		cmd.Speed = uint16(data[0]&^speedMoveMask) * SpeedMoveUnit
		cmd.Target = be16(data[1:])
	case KindAccelSpeedMove:
		if data[3]&0x80 != 0 {
			return Command{}, ErrCommandData
		}
		cmd.AccelCode = data[0] &^ accelSpeedMoveMask
		cmd.Speed = be16(data[1:])
		cmd.Target = be16(data[3:])
	case KindSoftStop:
		cmd.Reset = data[0] == OpSoftStopReset
	}
	return cmd, nil
}

// decodeSettings parses a LoadSettings write: the opcode, then whole words,
// then an optional limit-switch control byte (odd payload) or word (ninth word).
func decodeSettings(data []byte) (Command, error) {
	cmd := Command{Kind: KindLoadSettings}
	if len(data) < LoadSettingsMinLen || len(data) > LoadSettingsMaxLen {
		return Command{}, ErrCommandData
	}

	payload := data[1:]
	if len(payload)%2 == 1 {
		// A trailing single byte is only valid after all eight words
		if len(payload) != 2*MaxSettingWords+1 {
			return Command{}, ErrCommandData
		}
		cmd.HasLimitControl = true
		cmd.LimitControl = payload[len(payload)-1]
		payload = payload[:len(payload)-1]
	} else if len(payload) == 2*MaxSettingWords+2 {
		cmd.HasLimitControl = true
		cmd.LimitWord = true
		cmd.LimitControl = payload[len(payload)-1]
		payload = payload[:len(payload)-2]
	}

	for i := 0; i+1 < len(payload); i += 2 {
		cmd.Settings[cmd.SettingCount] = be16(payload[i:])
		cmd.SettingCount++
	}
	return cmd, nil
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// Receiver assembles the bytes of one motor's bus writes into commands.
// Push and End run in bus interrupt context; Take runs in the main loop
// with interrupts disabled.
type Receiver struct {
	buf    [MaxCommandLen]byte
	n      uint8
	want   uint8
	active bool // a write is in progress
	bad    bool // the current write already failed

	ready bool
	cmd   Command
}

// Begin starts a new write transaction
func (r *Receiver) Begin() {
	r.n = 0
	r.want = 0
	r.active = true
	r.bad = false
}

// Push appends one received byte. It returns ErrCommandData for an invalid
// leading byte or an overlong write and ErrCommandNotDone when the command
// completes while the previous one is still unconsumed. After an error the
// remaining bytes of the write are ignored.
func (r *Receiver) Push(b byte) error {
	if !r.active || r.bad {
		return nil
	}

	if r.n == 0 {
		_, length, err := Classify(b)
		if err != nil {
			r.bad = true
			return err
		}
		r.want = uint8(length)
	}

	if r.n >= r.want {
		r.bad = true
		return ErrCommandData
	}
	r.buf[r.n] = b
	r.n++

	// Fixed-length commands complete on their last byte; LoadSettings
	// completes at the stop condition unless it reaches its maximum length
	if r.n == r.want {
		return r.complete()
	}
	return nil
}

// End finishes the write transaction at the bus stop condition
func (r *Receiver) End() error {
	if !r.active {
		return nil
	}
	r.active = false
	if r.bad || r.n == 0 || r.n == r.want {
		return nil
	}
	if r.buf[0] == OpLoadSettings {
		r.want = r.n
		return r.complete()
	}
	return ErrCommandData
}

// Abort drops the bytes of the current write
func (r *Receiver) Abort() {
	r.active = false
	r.bad = false
	r.n = 0
}

func (r *Receiver) complete() error {
	cmd, err := Decode(r.buf[:r.n])
	if err != nil {
		r.bad = true
		return err
	}
	if r.ready {
		r.bad = true
		return ErrCommandNotDone
	}
	r.cmd = cmd
	r.ready = true
	return nil
}

// Ready reports whether a complete command is waiting to be consumed
func (r *Receiver) Ready() bool {
	return r.ready
}

// Take consumes the waiting command
func (r *Receiver) Take() (Command, bool) {
	if !r.ready {
		return Command{}, false
	}
	r.ready = false
	return r.cmd, true
}

// Reset discards any partial or waiting command
func (r *Receiver) Reset() {
	*r = Receiver{}
}
