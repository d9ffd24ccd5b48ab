package aggregator

import "time"

type Timeframe uint8

const (
	// Whole range in one bucket.
	TimeframeAll Timeframe = iota
	TimeframeHourly
	TimeframeDaily
)

// Summary is the statistics of one function/unit pair over one bucket.
// Overflow readings are counted separately and excluded from the values.
type Summary struct {
	Start     time.Time
	Function  string
	Unit      string
	Count     int64
	Overflows int64
	Min       float64
	Max       float64
	Avg       float64
}
