package assembler

import (
	"errors"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

// ErrFrameSyncLost marks bytes discarded while hunting for a frame boundary.
// It is only ever reported, never returned from Next.
var ErrFrameSyncLost = errors.New("assembler: frame sync lost")

type State uint8

const (
	// No plausible frame start at the head of the buffer.
	Seeking State = iota
	// A frame start is buffered but the frame is incomplete.
	Accumulating
	// A complete, validated frame is at the head of the buffer.
	FrameReady
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case FrameReady:
		return "frame_ready"
	default:
		return "seeking"
	}
}

// DefaultMaxBuffered holds a few frames worth of backlog.
const DefaultMaxBuffered = 4 * protocol.FrameSize

type Stats struct {
	Frames       uint64
	ResyncBytes  uint64
	DroppedBytes uint64
}

// Assembler turns an arbitrary chunked byte stream into RawFrames.
type Assembler struct {
	buf         []byte
	maxBuffered int
	state       State
	stats       Stats
}
