// Package capture records assembled frames to disk and replays them later
// through the port_reader.Device interface.
package capture

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/sigurn/crc16"
	"github.com/sirupsen/logrus"
)

func NewWriter(out io.Writer) *Writer {
	w := &Writer{out: bufio.NewWriter(out)}
	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}
	return w
}

// Create opens path for appending.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

func (w *Writer) Record(frame protocol.RawFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.WriteString(EncodeLine(frame)); err != nil {
		return err
	}
	if err := w.out.WriteByte('\n'); err != nil {
		return err
	}
	return w.out.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.out.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// EncodeLine renders a frame as upper case hex followed by "!" and the
// CRC16-ARC of everything up to and including the "!".
func EncodeLine(frame protocol.RawFrame) string {
	data := strings.ToUpper(hex.EncodeToString(frame[:])) + "!"
	return data + fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable))
}

// DecodeLine reverses EncodeLine.
func DecodeLine(line string) (protocol.RawFrame, error) {
	var frame protocol.RawFrame
	parts := strings.Split(strings.TrimSpace(line), "!")
	if len(parts) != 2 || len(parts[1]) < 4 {
		return frame, ErrBadLine
	}

	data := parts[0] + "!"
	givenCRC := strings.ToUpper(parts[1][:4])
	if givenCRC != fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable)) {
		return frame, ErrBadCRC
	}

	raw, err := hex.DecodeString(parts[0])
	if err != nil {
		return frame, fmt.Errorf("%w: %w", ErrBadLine, err)
	}
	if len(raw) != protocol.FrameSize {
		return frame, fmt.Errorf("%w: %d bytes", ErrBadLine, len(raw))
	}
	copy(frame[:], raw)
	return frame, nil
}

// OpenReplay opens a capture file. Frames are handed out no faster than one
// per interval; zero replays as fast as they are read.
func OpenReplay(path string, interval time.Duration) (*ReplayDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &ReplayDevice{
		file:     f,
		scanner:  bufio.NewScanner(f),
		interval: interval,
	}, nil
}

// ReadTimeout returns the next valid frame as an HID report. Lines that fail
// their CRC are skipped. io.EOF marks the end of the capture.
func (d *ReplayDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, os.ErrClosed
	}

	if d.interval > 0 && !d.lastRead.IsZero() {
		wait := d.interval - time.Since(d.lastRead)
		if wait > timeout {
			time.Sleep(timeout)
			return 0, nil
		}
		if wait > 0 {
			time.Sleep(wait)
		}
	}

	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		frame, err := DecodeLine(text)
		if err != nil {
			logrus.WithError(err).WithField("line", d.line).Warn("Skipping capture line")
			continue
		}
		d.lastRead = time.Now()
		report := append([]byte{byte(protocol.FrameSize)}, frame[:]...)
		return copy(p, report), nil
	}
	if err := d.scanner.Err(); err != nil {
		return 0, err
	}
	return 0, io.EOF
}

// Write swallows measurement requests.
func (d *ReplayDevice) Write(p []byte) (int, error) {
	return len(p), nil
}

func (d *ReplayDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
