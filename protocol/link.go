package protocol

import "tinygo.org/x/drivers"

// Link frame layout:
//
//	[len][seq][addr<<1 | read][payload...][crc hi][crc lo][sync]
//
// A write frame carries the bytes of one bus write. A read frame carries a
// single byte holding the number of bytes to read. Every frame is answered
// with a frame echoing seq and address whose payload is the read data, or
// empty for a write. A failed transaction is answered with LinkFlagErrorSeq
// set in the seq byte.
const (
	LinkHeaderSize   = 3
	LinkTrailerSize  = 3
	LinkFrameMin     = LinkHeaderSize + LinkTrailerSize
	LinkFrameMax     = LinkFrameMin + MaxCommandLen
	LinkPositionLen  = 0
	LinkPositionSeq  = 1
	LinkPositionAddr = 2
	LinkTrailerCRC   = 3
	LinkTrailerSync  = 1
	LinkValueSync    = 0x7E
	LinkSeqDest      = 0x10
	LinkSeqMask      = 0x0F
	LinkFlagRead     = 0x01 // set in the address byte
	LinkFlagErrorSeq = 0x20 // set in the seq byte of a failed reply
)

// LinkFrame is a decoded link frame
type LinkFrame struct {
	Seq     uint8
	Addr    uint8
	Read    bool
	Failed  bool
	Payload []byte
}

// Link carries bus transactions framed on a byte stream to an I2C master
type Link struct {
	synchronized bool
	output       OutputBuffer
	bus          drivers.I2C
	readBuf      [StatusLen]byte

	// OnError is called for every failed transaction
	OnError func(addr uint8, err error)
}

// NewLink creates a Link that replies through output
func NewLink(output OutputBuffer, bus drivers.I2C) *Link {
	return &Link{
		synchronized: true,
		output:       output,
		bus:          bus,
	}
}

// Receive processes incoming data from the input buffer
func (l *Link) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !l.synchronized {
			// Look for sync byte to resynchronize
			syncPos := -1
			for i, b := range data {
				if b == LinkValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			l.synchronized = true
			continue
		}

		// Skip leading sync bytes
		if data[0] == LinkValueSync {
			data = data[1:]
			continue
		}

		if len(data) < LinkFrameMin {
			break
		}

		msgLen := int(data[LinkPositionLen])
		if msgLen < LinkFrameMin || msgLen > LinkFrameMax {
			l.synchronized = false
			continue
		}
		if data[LinkPositionSeq]&^LinkSeqMask != LinkSeqDest {
			l.synchronized = false
			continue
		}

		// Wait for full frame
		if len(data) < msgLen {
			break
		}

		frame, err := parseLinkFrame(data[:msgLen])
		if err != nil {
			l.synchronized = false
			continue
		}
		data = data[msgLen:]
		l.dispatch(frame)
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (l *Link) dispatch(f LinkFrame) {
	var err error
	var reply []byte
	if f.Read {
		n := StatusLen
		if len(f.Payload) > 0 && int(f.Payload[0]) < n {
			n = int(f.Payload[0])
		}
		reply = l.readBuf[:n]
		err = l.bus.Tx(uint16(f.Addr), nil, reply)
	} else {
		err = l.bus.Tx(uint16(f.Addr), f.Payload, nil)
	}

	if err != nil {
		if l.OnError != nil {
			l.OnError(f.Addr, err)
		}
		EncodeLinkFrame(l.output, LinkFrame{Seq: f.Seq, Addr: f.Addr, Read: f.Read, Failed: true})
		return
	}
	EncodeLinkFrame(l.output, LinkFrame{Seq: f.Seq, Addr: f.Addr, Read: f.Read, Payload: reply})
}

// EncodeLinkFrame writes one frame to the output buffer
func EncodeLinkFrame(out OutputBuffer, f LinkFrame) {
	cursor := out.CurPosition()

	seq := LinkSeqDest | f.Seq&LinkSeqMask
	if f.Failed {
		seq |= LinkFlagErrorSeq
	}
	addr := f.Addr << 1
	if f.Read {
		addr |= LinkFlagRead
	}
	out.Output([]byte{0, seq, addr})
	out.Output(f.Payload)

	changed := len(out.DataSince(cursor))
	out.Update(cursor, uint8(changed+LinkTrailerSize))

	crc := CRC16(out.DataSince(cursor))
	out.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		LinkValueSync,
	})
}

// DecodeLinkFrame parses the first frame in data, returning it and the
// number of bytes consumed. Leading sync bytes are skipped.
func DecodeLinkFrame(data []byte) (LinkFrame, int, error) {
	skip := 0
	for skip < len(data) && data[skip] == LinkValueSync {
		skip++
	}
	data = data[skip:]
	if len(data) < LinkFrameMin {
		return LinkFrame{}, 0, ErrShortFrame
	}
	msgLen := int(data[LinkPositionLen])
	if msgLen < LinkFrameMin || msgLen > LinkFrameMax {
		return LinkFrame{}, 0, ErrBadFrame
	}
	if len(data) < msgLen {
		return LinkFrame{}, 0, ErrShortFrame
	}
	f, err := parseLinkFrame(data[:msgLen])
	if err != nil {
		return LinkFrame{}, 0, err
	}
	return f, skip + msgLen, nil
}

func parseLinkFrame(frame []byte) (LinkFrame, error) {
	n := len(frame)
	if frame[n-LinkTrailerSync] != LinkValueSync {
		return LinkFrame{}, ErrBadFrame
	}
	frameCRC := uint16(frame[n-LinkTrailerCRC])<<8 | uint16(frame[n-LinkTrailerCRC+1])
	if frameCRC != CRC16(frame[:n-LinkTrailerSize]) {
		return LinkFrame{}, ErrBadFrame
	}

	seq := frame[LinkPositionSeq]
	addr := frame[LinkPositionAddr]
	return LinkFrame{
		Seq:     seq & LinkSeqMask,
		Failed:  seq&LinkFlagErrorSeq != 0,
		Addr:    addr >> 1,
		Read:    addr&LinkFlagRead != 0,
		Payload: frame[LinkHeaderSize : n-LinkTrailerSize],
	}, nil
}

// CRC16 is the frame checksum: CRC-16/MCRF4XX, the reflected CCITT
// polynomial with seed 0xFFFF, computed a byte at a time without a table
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		c ^= uint8(crc)
		c ^= c << 4
		w := uint16(c)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}
