package port_reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

// Initialize a new FrameReader over an already opened device.
func NewFrameReader(device Device, opts Options) *FrameReader {
	defaults := DefaultOptions()
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaults.ReadTimeout
	}
	if opts.ReportSize <= 0 {
		opts.ReportSize = defaults.ReportSize
	}
	return &FrameReader{
		device: device,
		opts:   opts,
		buf:    make([]byte, opts.ReportSize),
	}
}

// ReadChunk reads one report. A timeout yields an empty chunk and no error.
func (r *FrameReader) ReadChunk() ([]byte, error) {
	n, err := r.device.ReadTimeout(r.buf, r.opts.ReadTimeout)
	if err != nil {
		return nil, classify(err)
	}
	if n == 0 {
		return nil, nil
	}

	data := r.buf[:n]
	if r.opts.HIDReports {
		count := int(data[0])
		data = data[1:]
		if count < len(data) {
			data = data[:count]
		}
	}
	r.lastChunk = time.Now()

	chunk := make([]byte, len(data))
	copy(chunk, data)
	return chunk, nil
}

// Request asks the meter for its next display snapshot.
func (r *FrameReader) Request() error {
	msg := protocol.GetMeasurement
	if r.opts.HIDReports {
		msg = protocol.RequestReport()
	}
	if _, err := r.device.Write(msg); err != nil {
		return classify(err)
	}
	return nil
}

// Idle reports how long ago the last non-empty chunk arrived.
func (r *FrameReader) Idle() time.Duration {
	if r.lastChunk.IsZero() {
		return 0
	}
	return time.Since(r.lastChunk)
}

// Close releases the device. Safe to call more than once.
func (r *FrameReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.device.Close()
	})
	return r.closeErr
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrDeviceLost):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%w: %w", ErrDeviceLost, err)
	default:
		return fmt.Errorf("%w: %w", ErrIoFailure, err)
	}
}
