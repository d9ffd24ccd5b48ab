package segment

import (
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

// glyphTable maps every possible display byte to a glyph.
var glyphTable = func() [256]Glyph {
	var t [256]Glyph
	for i := range t {
		t[i] = GlyphUnknown
	}
	for d := byte(0); d <= 9; d++ {
		t['0'+d] = Glyph(d)
	}
	t[' '] = GlyphBlank
	t['-'] = GlyphMinus
	t['.'] = GlyphPoint
	t['O'] = GlyphO
	t['L'] = GlyphL
	return t
}()

// Decode splits a frame into display glyphs and indicator bits.
func Decode(frame protocol.RawFrame) (Fields, error) {
	f := Fields{
		Mode:  frame[protocol.OffsetMode],
		Range: frame[protocol.OffsetRange],
	}

	sawPoint := false
	sawO := false
	started := false
	for i := 0; i < protocol.DisplayWidth; i++ {
		pattern := frame[protocol.OffsetDisplay+i]
		g := glyphTable[pattern]
		if g == GlyphUnknown {
			return Fields{}, &UnknownSegmentPatternError{Position: i, Pattern: pattern}
		}
		f.Glyphs[i] = g

		switch {
		case g.IsDigit():
			f.Digits[f.DigitCount] = uint8(g)
			f.DigitCount++
			if sawPoint {
				f.DecimalPlaces++
			}
			started = true
		case g == GlyphMinus:
			// A minus only means something as the sign in front of the value.
			if started {
				return Fields{}, &UnknownSegmentPatternError{Position: i, Pattern: pattern}
			}
			f.Negative = true
		case g == GlyphPoint:
			if sawPoint {
				return Fields{}, &UnknownSegmentPatternError{Position: i, Pattern: pattern}
			}
			sawPoint = true
		case g == GlyphO:
			sawO = true
			started = true
		case g == GlyphL:
			if sawO {
				f.Overflow = true
			}
			started = true
		}
	}

	a := frame[protocol.OffsetFlagsA]
	f.Relative = a&protocol.FlagRelative != 0
	f.Hold = a&protocol.FlagHold != 0
	f.Min = a&protocol.FlagMin != 0
	f.Max = a&protocol.FlagMax != 0

	b := frame[protocol.OffsetFlagsB]
	f.HighVoltage = b&protocol.FlagHighVoltage != 0
	f.LowBattery = b&protocol.FlagLowBattery != 0
	f.ManualRange = b&protocol.FlagManualRange != 0

	c := frame[protocol.OffsetFlagsC]
	f.BarPolarity = c&protocol.FlagBarPolarity != 0
	f.PeakMin = c&protocol.FlagPeakMin != 0
	f.PeakMax = c&protocol.FlagPeakMax != 0
	f.DC = c&protocol.FlagDC != 0

	return f, nil
}
