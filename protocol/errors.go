package protocol

import "errors"

var (
	// ErrCommandData reports an invalid opcode, a malformed payload or a
	// write that ended before the expected byte count arrived
	ErrCommandData = errors.New("protocol: invalid command data")

	// ErrBusOverflow reports a byte that arrived before the previous one was consumed
	ErrBusOverflow = errors.New("protocol: bus overflow")

	// ErrCommandNotDone reports a completed command arriving while the
	// previous one for the same motor was still unconsumed
	ErrCommandNotDone = errors.New("protocol: command not done")

	// ErrShortStatus reports a status read with fewer than StatusLen bytes
	ErrShortStatus = errors.New("protocol: short status record")

	// ErrBadChecksum reports a status record whose checksum does not match
	ErrBadChecksum = errors.New("protocol: status checksum mismatch")

	// ErrShortFrame reports a link frame that has not fully arrived
	ErrShortFrame = errors.New("protocol: short link frame")

	// ErrBadFrame reports a link frame with a bad length, CRC or sync byte
	ErrBadFrame = errors.New("protocol: bad link frame")
)
