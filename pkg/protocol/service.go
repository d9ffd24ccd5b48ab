package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadSync     = errors.New("protocol: bad sync marker")
	ErrBadLength   = errors.New("protocol: bad length byte")
	ErrBadChecksum = errors.New("protocol: checksum mismatch")
	ErrShortFrame  = errors.New("protocol: short frame")
)

// Checksum is the 16-bit byte sum the meter appends to every message.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}

// Validate checks one frame-sized window of bytes.
func Validate(b []byte) error {
	if len(b) < FrameSize {
		return ErrShortFrame
	}
	if b[0] != SyncByte0 || b[1] != SyncByte1 {
		return ErrBadSync
	}
	if b[OffsetLength] != PayloadLength {
		return fmt.Errorf("%w: 0x%02X", ErrBadLength, b[OffsetLength])
	}
	given := binary.BigEndian.Uint16(b[OffsetChecksum:FrameSize])
	if calc := Checksum(b[:OffsetChecksum]); calc != given {
		return fmt.Errorf("%w: given 0x%04X, calculated 0x%04X", ErrBadChecksum, given, calc)
	}
	return nil
}

// RequestReport wraps GetMeasurement in an HID output report. The bridge
// uses the report id as the number of UART bytes that follow.
func RequestReport() []byte {
	report := make([]byte, 0, len(GetMeasurement)+1)
	report = append(report, byte(len(GetMeasurement)))
	return append(report, GetMeasurement...)
}

// FrameSpec describes the display state a synthetic frame should carry.
type FrameSpec struct {
	Mode    byte
	Range   byte
	Display string
	FlagsA  byte
	FlagsB  byte
	FlagsC  byte
}

// BuildFrame encodes a FrameSpec the way the meter would send it.
// Display is right-aligned and padded with blanks to DisplayWidth.
func BuildFrame(spec FrameSpec) RawFrame {
	var f RawFrame
	f[0] = SyncByte0
	f[1] = SyncByte1
	f[OffsetLength] = PayloadLength
	f[OffsetMode] = spec.Mode
	f[OffsetRange] = spec.Range

	display := spec.Display
	if len(display) > DisplayWidth {
		display = display[:DisplayWidth]
	}
	pad := DisplayWidth - len(display)
	for i := 0; i < DisplayWidth; i++ {
		if i < pad {
			f[OffsetDisplay+i] = ' '
		} else {
			f[OffsetDisplay+i] = display[i-pad]
		}
	}

	f[OffsetBarGraph] = FlagBase
	f[OffsetBarGraph+1] = FlagBase
	f[OffsetFlagsA] = FlagBase | spec.FlagsA
	f[OffsetFlagsB] = FlagBase | spec.FlagsB
	f[OffsetFlagsC] = FlagBase | spec.FlagsC

	binary.BigEndian.PutUint16(f[OffsetChecksum:], Checksum(f[:OffsetChecksum]))
	return f
}
