package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type Function uint8

const (
	FunctionUnknown Function = iota
	Voltage
	Current
	Resistance
	Continuity
	Diode
	Capacitance
	Frequency
	DutyCycle
	TransistorGain
	NonContactVoltage
)

var functionNames = map[Function]string{
	FunctionUnknown:   "Unknown",
	Voltage:           "Voltage",
	Current:           "Current",
	Resistance:        "Resistance",
	Continuity:        "Continuity",
	Diode:             "Diode",
	Capacitance:       "Capacitance",
	Frequency:         "Frequency",
	DutyCycle:         "DutyCycle",
	TransistorGain:    "TransistorGain",
	NonContactVoltage: "NonContactVoltage",
}

func (f Function) String() string {
	if name, ok := functionNames[f]; ok {
		return name
	}
	return functionNames[FunctionUnknown]
}

// Scale is the SI prefix of the displayed unit.
type Scale uint8

const (
	ScaleNone Scale = iota
	ScaleNano
	ScaleMicro
	ScaleMilli
	ScaleKilo
	ScaleMega
)

var scaleNames = [...]string{"", "nano", "micro", "milli", "kilo", "mega"}

var scaleMultipliers = [...]float64{1, 1e-9, 1e-6, 1e-3, 1e3, 1e6}

func (s Scale) String() string {
	if int(s) < len(scaleNames) {
		return scaleNames[s]
	}
	return ""
}

func (s Scale) Multiplier() float64 {
	if int(s) < len(scaleMultipliers) {
		return scaleMultipliers[s]
	}
	return 1
}

type RangeMode uint8

const (
	RangeAuto RangeMode = iota
	RangeManual
)

func (m RangeMode) String() string {
	if m == RangeManual {
		return "manual"
	}
	return "auto"
}

// Range is the meter's range state: auto or manual plus the selected step.
type Range struct {
	Mode RangeMode `json:"mode"`
	Step uint8     `json:"step"`
}

// Flags are the independent indicators shown alongside the value.
type Flags struct {
	AC          bool `json:"ac,omitempty"`
	DC          bool `json:"dc,omitempty"`
	Hold        bool `json:"hold,omitempty"`
	Relative    bool `json:"relative,omitempty"`
	LowBattery  bool `json:"low_battery,omitempty"`
	Max         bool `json:"max,omitempty"`
	Min         bool `json:"min,omitempty"`
	PeakMax     bool `json:"peak_max,omitempty"`
	PeakMin     bool `json:"peak_min,omitempty"`
	HighVoltage bool `json:"high_voltage,omitempty"`
}

// Names lists the set flags in a stable order.
func (f Flags) Names() []string {
	names := make([]string, 0, 4)
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(f.AC, "AC")
	add(f.DC, "DC")
	add(f.Hold, "HOLD")
	add(f.Relative, "REL")
	add(f.Max, "MAX")
	add(f.Min, "MIN")
	add(f.PeakMax, "PMAX")
	add(f.PeakMin, "PMIN")
	add(f.LowBattery, "BAT")
	add(f.HighVoltage, "HV")
	return names
}

func (f Flags) String() string {
	return strings.Join(f.Names(), "|")
}

// Reading is one decoded display snapshot.
type Reading struct {
	Timestamp time.Time
	// Value is in Unit. Overflow readings carry ±Inf.
	Value    float64
	Overflow bool
	Function Function
	Range    Range
	Scale    Scale
	Unit     string
	Flags    Flags
}

// OverflowValue is the sentinel for an "OL" display.
func OverflowValue(negative bool) float64 {
	if negative {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// BaseValue converts Value to the unprefixed unit.
func (r Reading) BaseValue() float64 {
	return r.Value * r.Scale.Multiplier()
}

// FormatValue renders Value the way a sink should print it.
func (r Reading) FormatValue() string {
	if r.Overflow {
		if math.Signbit(r.Value) {
			return "-OL"
		}
		return "OL"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

type readingJson struct {
	Timestamp string `json:"timestamp"`
	Value     any    `json:"value"`
	Overflow  bool   `json:"overflow"`
	Function  string `json:"function"`
	Range     Range  `json:"range"`
	Scale     string `json:"scale,omitempty"`
	Unit      string `json:"unit"`
	Flags     Flags  `json:"flags"`
}

// MarshalJSON encodes overflow as "OL" since JSON has no infinity.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJson{
		Timestamp: r.Timestamp.Format(time.RFC3339Nano),
		Value:     r.Value,
		Overflow:  r.Overflow,
		Function:  r.Function.String(),
		Range:     r.Range,
		Scale:     r.Scale.String(),
		Unit:      r.Unit,
		Flags:     r.Flags,
	}
	if r.Overflow {
		out.Value = r.FormatValue()
	}
	return json.Marshal(out)
}

func (r Reading) ToJsonBytes() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}
