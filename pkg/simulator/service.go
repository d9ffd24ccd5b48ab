// Package simulator provides a fake meter that answers measurement requests
// with a noisy DC voltage sine wave.
package simulator

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

const (
	amplitude = 10.0
	// Phase advance per answered request.
	step  = 0.2
	noise = 0.5
	// DC volts, 22 V range.
	simMode  = 2
	simRange = protocol.RangeBase + 1
)

type Device struct {
	mu      sync.Mutex
	rng     *rand.Rand
	t       float64
	pending [][]byte
	ready   chan struct{}
	closed  bool
}

// New creates a simulator. The same seed yields the same waveform.
func New(seed uint64) *Device {
	return &Device{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		ready: make(chan struct{}, 1),
	}
}

// Write queues one frame for every measurement request.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, os.ErrClosed
	}
	if !bytes.Contains(p, protocol.GetMeasurement) {
		return len(p), nil
	}

	frame := protocol.BuildFrame(protocol.FrameSpec{
		Mode:    simMode,
		Range:   simRange,
		Display: fmt.Sprintf("%.3f", d.next()),
	})
	d.pending = append(d.pending, append([]byte{byte(protocol.FrameSize)}, frame[:]...))
	select {
	case d.ready <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (d *Device) next() float64 {
	v := math.Sin(d.t*step)*amplitude + (d.rng.Float64()*2-1)*noise
	d.t++
	return v
}

// ReadTimeout hands out queued frames as HID reports.
func (d *Device) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if n, ok, err := d.pop(p); ok || err != nil {
		return n, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.ready:
	case <-timer.C:
	}
	n, _, err := d.pop(p)
	return n, err
}

func (d *Device) pop(p []byte) (int, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, false, os.ErrClosed
	}
	if len(d.pending) == 0 {
		return 0, false, nil
	}
	report := d.pending[0]
	d.pending = d.pending[1:]
	return copy(p, report), true, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.pending = nil
	return nil
}
