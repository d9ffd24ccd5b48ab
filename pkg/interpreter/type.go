package interpreter

import (
	"errors"
	"fmt"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

var (
	ErrUnknownMode    = errors.New("interpreter: unknown mode")
	ErrNoNumericValue = errors.New("interpreter: display shows no value")
)

// UnknownModeError carries the mode/range combination the table lacks.
type UnknownModeError struct {
	Mode  byte
	Range byte
	// What the meter showed, for logging.
	Display string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("interpreter: unknown mode %d with range 0x%02X", e.Mode, e.Range)
}

func (e *UnknownModeError) Unwrap() error {
	return ErrUnknownMode
}

type unitSpec struct {
	Unit  string
	Scale types.Scale
}

type modeSpec struct {
	Function types.Function
	AC       bool
	DC       bool
	// Keyed by range code.
	Units map[byte]unitSpec
}

func ranges(spans ...map[byte]unitSpec) map[byte]unitSpec {
	out := make(map[byte]unitSpec)
	for _, s := range spans {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// span assigns one unit to the range steps lo..hi inclusive.
func span(lo, hi uint8, unit string, scale types.Scale) map[byte]unitSpec {
	out := make(map[byte]unitSpec, int(hi-lo)+1)
	for step := lo; step <= hi; step++ {
		out[protocol.RangeBase+step] = unitSpec{Unit: unit, Scale: scale}
	}
	return out
}

var modeTable = map[byte]modeSpec{
	0:  {Function: types.Voltage, AC: true, Units: span(0, 3, "V", types.ScaleNone)},
	1:  {Function: types.Voltage, AC: true, Units: span(0, 0, "mV", types.ScaleMilli)},
	2:  {Function: types.Voltage, DC: true, Units: span(0, 3, "V", types.ScaleNone)},
	3:  {Function: types.Voltage, DC: true, Units: span(0, 0, "mV", types.ScaleMilli)},
	4:  {Function: types.Frequency, Units: ranges(span(0, 1, "Hz", types.ScaleNone), span(2, 4, "kHz", types.ScaleKilo), span(5, 7, "MHz", types.ScaleMega))},
	5:  {Function: types.DutyCycle, Units: span(0, 0, "%", types.ScaleNone)},
	6:  {Function: types.Resistance, Units: ranges(span(0, 0, "Ω", types.ScaleNone), span(1, 3, "kΩ", types.ScaleKilo), span(4, 6, "MΩ", types.ScaleMega))},
	7:  {Function: types.Continuity, Units: span(0, 6, "Ω", types.ScaleNone)},
	8:  {Function: types.Diode, Units: span(0, 0, "V", types.ScaleNone)},
	9:  {Function: types.Capacitance, Units: ranges(span(0, 1, "nF", types.ScaleNano), span(2, 4, "µF", types.ScaleMicro), span(5, 6, "mF", types.ScaleMilli))},
	12: {Function: types.Current, DC: true, Units: span(0, 1, "µA", types.ScaleMicro)},
	13: {Function: types.Current, AC: true, Units: span(0, 1, "µA", types.ScaleMicro)},
	14: {Function: types.Current, DC: true, Units: span(0, 1, "mA", types.ScaleMilli)},
	15: {Function: types.Current, AC: true, Units: span(0, 1, "mA", types.ScaleMilli)},
	16: {Function: types.Current, DC: true, Units: span(1, 1, "A", types.ScaleNone)},
	17: {Function: types.Current, AC: true, Units: span(1, 1, "A", types.ScaleNone)},
	18: {Function: types.TransistorGain, Units: span(0, 0, "β", types.ScaleNone)},
	20: {Function: types.NonContactVoltage, Units: span(0, 0, "NCV", types.ScaleNone)},
	// Low-pass filtered AC voltage.
	24: {Function: types.Voltage, AC: true, Units: span(0, 3, "V", types.ScaleNone)},
	25: {Function: types.Voltage, AC: true, DC: true, Units: span(0, 3, "V", types.ScaleNone)},
}
