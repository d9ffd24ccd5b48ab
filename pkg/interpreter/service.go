// Package interpreter turns decoded segment fields into typed readings.
package interpreter

import (
	"math"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/segment"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

// Build resolves one frame's fields into a Reading. Timestamp is left zero;
// the caller stamps it when the frame was received.
func Build(f segment.Fields) (types.Reading, error) {
	mode, ok := modeTable[f.Mode]
	if !ok {
		return types.Reading{}, &UnknownModeError{Mode: f.Mode, Range: f.Range, Display: f.Display()}
	}
	unit, ok := mode.Units[f.Range]
	if !ok {
		return types.Reading{}, &UnknownModeError{Mode: f.Mode, Range: f.Range, Display: f.Display()}
	}

	reading := types.Reading{
		Function: mode.Function,
		Range: types.Range{
			Mode: types.RangeAuto,
			Step: f.Range - protocol.RangeBase,
		},
		Scale: unit.Scale,
		Unit:  unit.Unit,
		Flags: types.Flags{
			AC:          mode.AC,
			DC:          mode.DC,
			Hold:        f.Hold,
			Relative:    f.Relative,
			LowBattery:  f.LowBattery,
			Max:         f.Max,
			Min:         f.Min,
			PeakMax:     f.PeakMax,
			PeakMin:     f.PeakMin,
			HighVoltage: f.HighVoltage,
		},
	}
	if f.ManualRange {
		reading.Range.Mode = types.RangeManual
	}

	switch {
	case f.Overflow:
		reading.Overflow = true
		reading.Value = types.OverflowValue(f.Negative)
	case f.DigitCount == 0:
		return types.Reading{}, ErrNoNumericValue
	default:
		reading.Value = composeValue(f)
	}
	return reading, nil
}

// Interpret decodes and builds in one step.
func Interpret(frame protocol.RawFrame) (types.Reading, error) {
	fields, err := segment.Decode(frame)
	if err != nil {
		return types.Reading{}, err
	}
	return Build(fields)
}

// composeValue works on the integer mantissa so the result is the closest
// float to the displayed decimal.
func composeValue(f segment.Fields) float64 {
	var mantissa int64
	for i := 0; i < f.DigitCount; i++ {
		mantissa = mantissa*10 + int64(f.Digits[i])
	}
	value := float64(mantissa) / math.Pow10(f.DecimalPlaces)
	if f.Negative {
		value = -value
	}
	return value
}
