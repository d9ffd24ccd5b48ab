package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

var csvHeader = []string{"timestamp", "function", "value", "unit", "scale", "range", "flags"}

// CSVSink writes one record per reading and flushes after each.
type CSVSink struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewCSVSink(out io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(out)}
}

func (s *CSVSink) Emit(reading types.Reading) error {
	if !s.wroteHeader {
		if err := s.w.Write(csvHeader); err != nil {
			return err
		}
		s.wroteHeader = true
	}

	record := []string{
		reading.Timestamp.Format(time.RFC3339Nano),
		reading.Function.String(),
		reading.FormatValue(),
		reading.Unit,
		reading.Scale.String(),
		fmt.Sprintf("%s:%d", reading.Range.Mode, reading.Range.Step),
		reading.Flags.String(),
	}
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}
