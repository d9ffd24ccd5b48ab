package port_reader

import (
	"errors"
	"sync"
	"time"
)

var (
	// Transient; the next read may succeed.
	ErrIoFailure = errors.New("port_reader: read failed")
	// Permanent; the handle is gone.
	ErrDeviceLost = errors.New("port_reader: device lost")
	ErrNoDevice   = errors.New("port_reader: no supported meter connected")
)

// Device is a byte-oriented handle to the meter. ReadTimeout returns (0, nil)
// when nothing arrived within timeout.
type Device interface {
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Options configure how a FrameReader talks to its Device.
type Options struct {
	ReadTimeout time.Duration
	// Largest report the device hands out in one read.
	ReportSize int
	// HIDReports marks devices whose reads start with a report id holding the
	// number of UART bytes that follow.
	HIDReports bool
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout: 500 * time.Millisecond,
		ReportSize:  64,
		HIDReports:  true,
	}
}

// FrameReader pulls raw chunks off a Device. It does not interpret them.
type FrameReader struct {
	device    Device
	opts      Options
	buf       []byte
	lastChunk time.Time

	closeOnce sync.Once
	closeErr  error
}
