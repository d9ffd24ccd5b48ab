package output

import (
	"errors"

	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

// Sink receives readings in the order they were decoded.
type Sink interface {
	Emit(reading types.Reading) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(reading types.Reading) error

func (f SinkFunc) Emit(reading types.Reading) error {
	return f(reading)
}

// MultiSink forwards each reading to every sink, even if an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Emit(reading types.Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(reading); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
