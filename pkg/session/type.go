package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/assembler"
	"github.com/NotCoffee418/ut61e_logger/pkg/output"
	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
	"github.com/sirupsen/logrus"
)

// ErrSessionFinished is returned by Run on a session that already ran.
var ErrSessionFinished = errors.New("session: already finished")

// FrameRecorder receives every assembled frame before it is decoded.
type FrameRecorder interface {
	Record(frame protocol.RawFrame) error
}

type Options struct {
	// The request command is sent at most once per PollInterval. Zero sends
	// it before every read.
	PollInterval time.Duration
	MaxBuffered  int
	// Transient I/O failures in a row before the device counts as lost.
	MaxConsecutiveErrors int
	Logger               *logrus.Logger
	Capture              FrameRecorder
	Now                  func() time.Time
}

func DefaultOptions() Options {
	return Options{
		PollInterval:         time.Second / 6,
		MaxBuffered:          assembler.DefaultMaxBuffered,
		MaxConsecutiveErrors: 10,
	}
}

// Session owns one device and drives it from raw reads to emitted readings.
type Session struct {
	reader    *port_reader.FrameReader
	sink      output.Sink
	opts      Options
	log       *logrus.Entry
	assembler *assembler.Assembler

	lastStats         assembler.Stats
	lastRequest       time.Time
	awaitingResponse  bool
	consecutiveErrors int

	latestMutex sync.RWMutex
	latest      types.Reading
	hasLatest   bool

	runMutex sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	finished bool
}
