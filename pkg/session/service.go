package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/assembler"
	"github.com/NotCoffee418/ut61e_logger/pkg/interpreter"
	"github.com/NotCoffee418/ut61e_logger/pkg/metrics"
	"github.com/NotCoffee418/ut61e_logger/pkg/output"
	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/segment"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
	"github.com/sirupsen/logrus"
)

const maxBackoff = time.Second

func New(reader *port_reader.FrameReader, sink output.Sink, opts Options) *Session {
	defaults := DefaultOptions()
	if opts.MaxBuffered <= 0 {
		opts.MaxBuffered = defaults.MaxBuffered
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = defaults.MaxConsecutiveErrors
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		reader:    reader,
		sink:      sink,
		opts:      opts,
		log:       opts.Logger.WithField("component", "session"),
		assembler: assembler.NewAssembler(opts.MaxBuffered),
	}
}

// Run reads until ctx is cancelled, Stop is called or the device is lost.
// Cancellation returns nil; device loss returns an error wrapping
// port_reader.ErrDeviceLost. The device is closed on return.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.runMutex.Lock()
	if s.finished {
		s.runMutex.Unlock()
		return ErrSessionFinished
	}
	s.finished = true
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.runMutex.Unlock()

	defer func() {
		if err := s.reader.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close device")
		}
	}()

	s.log.Info("Session started")
	for {
		if ctx.Err() != nil {
			s.log.Info("Session stopped")
			return nil
		}
		if err := s.step(ctx); err != nil {
			s.log.WithError(err).Error("Device lost")
			return err
		}
	}
}

// Stop cancels a running session. A session stopped before Run returns
// from Run immediately.
func (s *Session) Stop() {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Latest returns the most recently emitted reading.
func (s *Session) Latest() (types.Reading, bool) {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.latest, s.hasLatest
}

func (s *Session) setLatest(reading types.Reading) {
	s.latestMutex.Lock()
	s.latest = reading
	s.hasLatest = true
	s.latestMutex.Unlock()
}

// step runs one request/read cycle. Only device loss is returned.
func (s *Session) step(ctx context.Context) error {
	now := s.opts.Now()
	wait := s.opts.PollInterval - now.Sub(s.lastRequest)
	if !s.lastRequest.IsZero() && wait > 0 && !s.awaitingResponse {
		// The last request was answered; reading now would only block
		// until the read timeout.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		now = s.opts.Now()
		wait = 0
	}
	if s.lastRequest.IsZero() || wait <= 0 {
		s.lastRequest = now
		s.awaitingResponse = true
		if err := s.reader.Request(); err != nil {
			return s.handleIoError(ctx, err)
		}
	}

	chunk, err := s.reader.ReadChunk()
	if err != nil {
		return s.handleIoError(ctx, err)
	}
	s.consecutiveErrors = 0

	if len(chunk) == 0 {
		// A partial frame that outlived a read timeout will never complete.
		if n := s.assembler.DropPartial(); n > 0 {
			s.log.WithField("bytes", n).Debug("Dropped stale partial frame")
		}
		s.publishStats()
		return nil
	}

	s.assembler.Push(chunk)
	for {
		frame, ok := s.assembler.Next()
		if !ok {
			break
		}
		s.handleFrame(frame)
	}
	s.publishStats()
	return nil
}

func (s *Session) handleIoError(ctx context.Context, err error) error {
	if errors.Is(err, port_reader.ErrDeviceLost) {
		return err
	}

	metrics.IoFailuresTotal.Inc()
	s.consecutiveErrors++
	s.log.WithError(err).WithField("consecutive", s.consecutiveErrors).Warn("Device I/O failed")
	if s.consecutiveErrors >= s.opts.MaxConsecutiveErrors {
		s.log.WithFields(logrus.Fields{
			"idle":     s.reader.Idle().String(),
			"buffered": s.assembler.Buffered(),
		}).Error("Giving up on device")
		return fmt.Errorf("%w: %d consecutive I/O failures: %w",
			port_reader.ErrDeviceLost, s.consecutiveErrors, err)
	}

	backoff := time.Duration(s.consecutiveErrors) * 10 * time.Millisecond
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
	return nil
}

func (s *Session) handleFrame(frame protocol.RawFrame) {
	receivedAt := s.opts.Now()

	if s.opts.Capture != nil {
		if err := s.opts.Capture.Record(frame); err != nil {
			s.log.WithError(err).Warn("Failed to record frame")
		}
	}

	s.awaitingResponse = false

	reading, err := interpreter.Interpret(frame)
	if err != nil {
		s.reportDecodeError(err)
		return
	}
	reading.Timestamp = receivedAt

	if err := s.sink.Emit(reading); err != nil {
		metrics.SinkErrorsTotal.Inc()
		s.log.WithError(err).Warn("Failed to write reading")
	} else {
		metrics.ReadingsTotal.Inc()
	}
	s.setLatest(reading)
}

func (s *Session) reportDecodeError(err error) {
	var patternErr *segment.UnknownSegmentPatternError
	var modeErr *interpreter.UnknownModeError
	switch {
	case errors.As(err, &patternErr):
		metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindSegment).Inc()
		s.log.WithFields(logrus.Fields{
			"position": patternErr.Position,
			"pattern":  fmt.Sprintf("0x%02X", patternErr.Pattern),
		}).Warn("Skipped frame with unknown display pattern")
	case errors.As(err, &modeErr):
		metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindMode).Inc()
		s.log.WithFields(logrus.Fields{
			"mode":    modeErr.Mode,
			"range":   modeErr.Range,
			"display": modeErr.Display,
		}).Warn("Skipped frame with unknown mode")
	case errors.Is(err, interpreter.ErrNoNumericValue):
		// Blank displays are normal while the meter switches functions.
		metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindBlank).Inc()
		s.log.Debug("Skipped frame without a value")
	default:
		metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindOther).Inc()
		s.log.WithError(err).Warn("Skipped undecodable frame")
	}
}

func (s *Session) publishStats() {
	st := s.assembler.Stats()
	if d := st.Frames - s.lastStats.Frames; d > 0 {
		metrics.FramesTotal.Add(float64(d))
	}
	if d := st.ResyncBytes - s.lastStats.ResyncBytes; d > 0 {
		metrics.ResyncBytesTotal.Add(float64(d))
		s.log.WithError(assembler.ErrFrameSyncLost).WithField("discarded", d).Warn("Resynchronized byte stream")
	}
	if d := st.DroppedBytes - s.lastStats.DroppedBytes; d > 0 {
		metrics.DroppedBytesTotal.Add(float64(d))
		s.log.WithField("dropped", d).Warn("Discarded backlog")
	}
	s.lastStats = st
}
