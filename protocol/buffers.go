package protocol

// ScratchSize is the capacity of a ScratchOutput, enough for a burst of link replies
const ScratchSize = 512

// InputBuffer is the receive side of a link: bytes that arrived and have
// not yet been consumed by a decoder
type InputBuffer interface {
	// Data returns the unconsumed bytes, oldest first
	Data() []byte

	// Available returns len(Data())
	Available() int

	// Pop discards n bytes from the front
	Pop(n int)
}

// OutputBuffer collects outgoing frames. A frame's length byte is patched
// in place once its payload has been written.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over bytes that are all present up front
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer of fixed size. Output past the end is
// dropped and counted.
type ScratchOutput struct {
	buf     [ScratchSize]byte
	pos     int
	dropped int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	s.dropped += len(data) - n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Dropped returns the number of bytes that did not fit since the last Reset
func (s *ScratchOutput) Dropped() int {
	return s.dropped
}

// Reset empties the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.dropped = 0
}

// RxBuffer accumulates bytes from a stream for a decoder. Unconsumed bytes
// are kept contiguous, so Data never copies; Pop moves the remainder down.
// Frames are short, so the move is a few bytes at most.
type RxBuffer struct {
	buf []byte
	n   int
}

// NewRxBuffer creates a buffer holding up to capacity unconsumed bytes
func NewRxBuffer(capacity int) *RxBuffer {
	return &RxBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count taken
func (r *RxBuffer) Write(data []byte) int {
	n := copy(r.buf[r.n:], data)
	r.n += n
	return n
}

func (r *RxBuffer) Data() []byte   { return r.buf[:r.n] }
func (r *RxBuffer) Available() int { return r.n }

// Free returns the room left for Write
func (r *RxBuffer) Free() int {
	return len(r.buf) - r.n
}

func (r *RxBuffer) Pop(n int) {
	if n >= r.n {
		r.n = 0
		return
	}
	if n <= 0 {
		return
	}
	r.n = copy(r.buf, r.buf[n:r.n])
}

// Reset discards everything
func (r *RxBuffer) Reset() {
	r.n = 0
}
