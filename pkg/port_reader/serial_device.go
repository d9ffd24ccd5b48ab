package port_reader

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// Zero byte reads that return long before the inter-character timeout mean
// the tty hung up. This many in a row count as a lost device.
const maxHangupReads = 3

type serialDevice struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	hangups int
}

// OpenSerial opens a tty carrying the meter's UART stream, e.g. a USB-serial
// adapter or a pty fed by a replay tool. The read timeout is fixed at open
// time in steps of 100ms.
func OpenSerial(portName string, baudrate uint, timeout time.Duration) (Device, error) {
	deciseconds := (timeout.Milliseconds() + 99) / 100
	if deciseconds < 1 {
		deciseconds = 1
	}
	options := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudrate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(deciseconds * 100),
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return &serialDevice{port: port, timeout: time.Duration(deciseconds) * 100 * time.Millisecond}, nil
}

// A tty read that times out returns zero bytes, which os.File reports as EOF.
// A hung up tty reports the same EOF, only without waiting.
func (d *serialDevice) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	start := time.Now()
	n, err := d.port.Read(p)
	if n > 0 || !errors.Is(err, io.EOF) {
		d.hangups = 0
		return n, err
	}

	if time.Since(start) < d.timeout/2 {
		d.hangups++
		if d.hangups >= maxHangupReads {
			return 0, io.EOF
		}
	} else {
		d.hangups = 0
	}
	return 0, nil
}

func (d *serialDevice) Write(p []byte) (int, error) {
	return d.port.Write(p)
}

func (d *serialDevice) Close() error {
	return d.port.Close()
}
