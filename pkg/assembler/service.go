package assembler

import (
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

// NewAssembler creates an assembler whose backlog never exceeds maxBuffered
// bytes. Values smaller than one frame fall back to DefaultMaxBuffered.
func NewAssembler(maxBuffered int) *Assembler {
	if maxBuffered < protocol.FrameSize {
		maxBuffered = DefaultMaxBuffered
	}
	return &Assembler{
		buf:         make([]byte, 0, maxBuffered+64),
		maxBuffered: maxBuffered,
	}
}

// Push appends one chunk as read from the device.
func (a *Assembler) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	a.buf = append(a.buf, chunk...)

	// Frames are snapshots, so losing the oldest backlog only loses history.
	if over := len(a.buf) - a.maxBuffered; over > 0 {
		a.consume(over)
		a.stats.DroppedBytes += uint64(over)
	}
	a.sync()
}

// Next pops the next complete frame if one is available.
func (a *Assembler) Next() (protocol.RawFrame, bool) {
	var frame protocol.RawFrame
	a.sync()
	if a.state != FrameReady {
		return frame, false
	}
	copy(frame[:], a.buf[:protocol.FrameSize])
	a.consume(protocol.FrameSize)
	a.stats.Frames++
	a.sync()
	return frame, true
}

// DropPartial discards an incomplete frame left over from an interrupted
// transfer. Returns the number of bytes dropped.
func (a *Assembler) DropPartial() int {
	if a.state != Accumulating {
		return 0
	}
	n := len(a.buf)
	a.buf = a.buf[:0]
	a.stats.DroppedBytes += uint64(n)
	a.state = Seeking
	return n
}

func (a *Assembler) State() State {
	return a.state
}

func (a *Assembler) Stats() Stats {
	return a.stats
}

// Buffered reports how many bytes are waiting.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// sync discards leading bytes one at a time until the head of the buffer is
// either a valid frame, a plausible partial frame, or the buffer is empty.
func (a *Assembler) sync() {
	for len(a.buf) > 0 {
		if !plausibleHead(a.buf) {
			a.resync()
			continue
		}
		if len(a.buf) < protocol.FrameSize {
			a.state = Accumulating
			return
		}
		if err := protocol.Validate(a.buf[:protocol.FrameSize]); err != nil {
			a.resync()
			continue
		}
		a.state = FrameReady
		return
	}
	a.state = Seeking
}

func (a *Assembler) resync() {
	a.consume(1)
	a.stats.ResyncBytes++
}

func (a *Assembler) consume(n int) {
	if n >= len(a.buf) {
		a.buf = a.buf[:0]
		return
	}
	a.buf = append(a.buf[:0], a.buf[n:]...)
}

// plausibleHead checks as much of the header as is buffered.
func plausibleHead(b []byte) bool {
	if b[0] != protocol.SyncByte0 {
		return false
	}
	if len(b) > 1 && b[1] != protocol.SyncByte1 {
		return false
	}
	if len(b) > protocol.OffsetLength && b[protocol.OffsetLength] != protocol.PayloadLength {
		return false
	}
	return true
}
