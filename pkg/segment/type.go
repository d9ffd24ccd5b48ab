// Package segment maps the display bytes of a RawFrame to glyphs and splits
// the indicator bytes into booleans. It keeps no state between frames.
package segment

import (
	"errors"
	"fmt"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

var ErrUnknownSegmentPattern = errors.New("segment: unknown segment pattern")

// UnknownSegmentPatternError names the display position the decoder could
// not map.
type UnknownSegmentPatternError struct {
	Position int
	Pattern  byte
}

func (e *UnknownSegmentPatternError) Error() string {
	return fmt.Sprintf("segment: unknown segment pattern 0x%02X at position %d", e.Pattern, e.Position)
}

func (e *UnknownSegmentPatternError) Unwrap() error {
	return ErrUnknownSegmentPattern
}

// Glyph is what one display position shows. Digits use their own value.
type Glyph uint8

const (
	GlyphBlank Glyph = 10 + iota
	GlyphMinus
	GlyphPoint
	GlyphO
	GlyphL

	GlyphUnknown Glyph = 0xFF
)

func (g Glyph) IsDigit() bool {
	return g <= 9
}

func (g Glyph) String() string {
	switch {
	case g.IsDigit():
		return string(rune('0' + g))
	case g == GlyphBlank:
		return " "
	case g == GlyphMinus:
		return "-"
	case g == GlyphPoint:
		return "."
	case g == GlyphO:
		return "O"
	case g == GlyphL:
		return "L"
	}
	return "?"
}

// Fields is everything one frame says, before any unit interpretation.
type Fields struct {
	Glyphs [protocol.DisplayWidth]Glyph

	// Digits in display order, most significant first.
	Digits     [protocol.DisplayWidth]uint8
	DigitCount int

	// Digits to the right of the decimal point.
	DecimalPlaces int
	Negative      bool
	Overflow      bool

	Mode  byte
	Range byte

	Relative bool
	Hold     bool
	Min      bool
	Max      bool

	HighVoltage bool
	LowBattery  bool
	ManualRange bool

	BarPolarity bool
	PeakMin     bool
	PeakMax     bool
	DC          bool
}

// Display renders the decoded glyphs back to text.
func (f Fields) Display() string {
	b := make([]byte, 0, protocol.DisplayWidth)
	for _, g := range f.Glyphs {
		b = append(b, g.String()...)
	}
	return string(b)
}
