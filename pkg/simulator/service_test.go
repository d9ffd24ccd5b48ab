package simulator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/interpreter"
	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

func TestSimulatorAnswersRequests(t *testing.T) {
	reader := port_reader.NewFrameReader(New(1), port_reader.DefaultOptions())
	defer reader.Close()

	for i := 0; i < 20; i++ {
		if err := reader.Request(); err != nil {
			t.Fatalf("request: %v", err)
		}
		chunk, err := reader.ReadChunk()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(chunk) != protocol.FrameSize {
			t.Fatalf("chunk %d has %d bytes", i, len(chunk))
		}
		var frame protocol.RawFrame
		copy(frame[:], chunk)
		reading, err := interpreter.Interpret(frame)
		if err != nil {
			t.Fatalf("interpret: %v", err)
		}
		if reading.Function != types.Voltage || !reading.Flags.DC || reading.Unit != "V" {
			t.Fatalf("unexpected reading: %+v", reading)
		}
		if math.Abs(reading.Value) > amplitude+noise {
			t.Fatalf("value out of range: %v", reading.Value)
		}
	}
}

func TestSimulatorIdlesWithoutRequest(t *testing.T) {
	dev := New(1)
	n, err := dev.ReadTimeout(make([]byte, 64), 5*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("expected timeout, got n=%d err=%v", n, err)
	}
}

func TestSimulatorIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 10; i++ {
		if a.next() != b.next() {
			t.Fatalf("sample %d differs", i)
		}
	}
}

func TestSimulatorClosed(t *testing.T) {
	reader := port_reader.NewFrameReader(New(1), port_reader.DefaultOptions())
	if err := reader.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := reader.ReadChunk(); !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost after close, got %v", err)
	}
}
