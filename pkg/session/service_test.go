package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/metrics"
	"github.com/NotCoffee418/ut61e_logger/pkg/output"
	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/NotCoffee418/ut61e_logger/pkg/simulator"
	"github.com/NotCoffee418/ut61e_logger/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedDevice plays back reads in order. Once the script is exhausted it
// returns end, or idles like a silent meter when end is nil.
type scriptedDevice struct {
	mu     sync.Mutex
	reads  []readResult
	end    error
	writes int
	closed int
}

func (d *scriptedDevice) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	d.mu.Lock()
	if len(d.reads) == 0 {
		end := d.end
		d.mu.Unlock()
		if end != nil {
			return 0, end
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	d.mu.Unlock()
	return copy(p, r.data), r.err
}

func (d *scriptedDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	return len(p), nil
}

func (d *scriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *scriptedDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// hidReport wraps bytes the way the USB bridge delivers them.
func hidReport(b []byte) readResult {
	return readResult{data: append([]byte{byte(len(b))}, b...)}
}

func frame(spec protocol.FrameSpec) []byte {
	f := protocol.BuildFrame(spec)
	return f[:]
}

type collectingSink struct {
	readings []types.Reading
}

func (c *collectingSink) Emit(r types.Reading) error {
	c.readings = append(c.readings, r)
	return nil
}

type frameLog struct {
	frames []protocol.RawFrame
}

func (l *frameLog) Record(f protocol.RawFrame) error {
	l.frames = append(l.frames, f)
	return nil
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(dev *scriptedDevice, sink output.Sink) (*Session, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	reader := port_reader.NewFrameReader(dev, port_reader.Options{
		ReadTimeout: 10 * time.Millisecond,
		HIDReports:  true,
	})
	s := New(reader, sink, Options{
		Logger:               logger,
		MaxConsecutiveErrors: 3,
		Now:                  func() time.Time { return fixedTime },
	})
	return s, hook
}

func TestRunDecodesDCVoltage(t *testing.T) {
	dc := frame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: "2.3450"})
	dev := &scriptedDevice{
		reads: []readResult{hidReport(dc[:8]), hidReport(dc[8:])},
		end:   io.EOF,
	}
	sink := &collectingSink{}
	s, _ := newTestSession(dev, sink)

	err := s.Run(context.Background())
	if !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost, got %v", err)
	}
	if len(sink.readings) != 1 {
		t.Fatalf("expected one reading, got %d", len(sink.readings))
	}
	want := types.Reading{
		Timestamp: fixedTime,
		Value:     2.345,
		Function:  types.Voltage,
		Unit:      "V",
		Flags:     types.Flags{DC: true},
	}
	if sink.readings[0] != want {
		t.Fatalf("got %+v want %+v", sink.readings[0], want)
	}
	latest, ok := s.Latest()
	if !ok || latest != want {
		t.Fatalf("latest: %+v %v", latest, ok)
	}
	if dev.writes == 0 {
		t.Fatalf("no request was sent")
	}
}

func TestRunReportsDeviceLossOnce(t *testing.T) {
	dev := &scriptedDevice{end: io.EOF}
	s, _ := newTestSession(dev, &collectingSink{})

	if err := s.Run(context.Background()); !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost, got %v", err)
	}
	if dev.closeCount() != 1 {
		t.Fatalf("device closed %d times", dev.closeCount())
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("second run: expected ErrSessionFinished, got %v", err)
	}
	if dev.closeCount() != 1 {
		t.Fatalf("device closed again by second run")
	}
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	dev := &scriptedDevice{}
	s, _ := newTestSession(dev, &collectingSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	if dev.closeCount() != 1 {
		t.Fatalf("device closed %d times", dev.closeCount())
	}
}

func TestStopEndsRun(t *testing.T) {
	dev := &scriptedDevice{}
	s, _ := newTestSession(dev, &collectingSink{})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after Stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	if dev.closeCount() != 1 {
		t.Fatalf("device closed %d times", dev.closeCount())
	}
}

func TestDecodeErrorsDoNotStopSession(t *testing.T) {
	var stream []byte
	stream = append(stream, frame(protocol.FrameSpec{Mode: 99, Range: protocol.RangeBase, Display: "1.0"})...)
	stream = append(stream, frame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: "1E"})...)
	stream = append(stream, frame(protocol.FrameSpec{Mode: 20, Range: protocol.RangeBase, Display: "----"})...)
	stream = append(stream, frame(protocol.FrameSpec{Mode: 6, Range: protocol.RangeBase + 1, Display: "4.700"})...)

	var reads []readResult
	for len(stream) > 0 {
		n := min(len(stream), 30)
		reads = append(reads, hidReport(stream[:n]))
		stream = stream[n:]
	}
	dev := &scriptedDevice{reads: reads, end: io.EOF}
	sink := &collectingSink{}
	s, hook := newTestSession(dev, sink)

	modeErrors := testutil.ToFloat64(metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindMode))
	segmentErrors := testutil.ToFloat64(metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindSegment))

	if err := s.Run(context.Background()); !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost, got %v", err)
	}
	if len(sink.readings) != 1 || sink.readings[0].Value != 4.7 || sink.readings[0].Unit != "kΩ" {
		t.Fatalf("unexpected readings: %+v", sink.readings)
	}

	var sawMode, sawPattern bool
	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		if entry.Data["mode"] == byte(99) {
			sawMode = true
		}
		if entry.Data["pattern"] == "0x45" && entry.Data["position"] == 6 {
			sawPattern = true
		}
	}
	if !sawMode || !sawPattern {
		t.Fatalf("missing warnings: mode=%v pattern=%v", sawMode, sawPattern)
	}

	if got := testutil.ToFloat64(metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindMode)) - modeErrors; got != 1 {
		t.Fatalf("mode error counter moved by %v", got)
	}
	if got := testutil.ToFloat64(metrics.DecodeErrorsTotal.WithLabelValues(metrics.KindSegment)) - segmentErrors; got != 1 {
		t.Fatalf("segment error counter moved by %v", got)
	}
}

func TestReadingsKeepFrameOrder(t *testing.T) {
	displays := []string{"1.000", "2.000", "3.000", "4.000", "5.000"}
	var stream []byte
	for _, d := range displays {
		stream = append(stream, frame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: d})...)
	}
	// Garbage in front exercises resync.
	stream = append([]byte{0x00, 0xAB}, stream...)

	var reads []readResult
	for len(stream) > 0 {
		n := min(len(stream), 7)
		reads = append(reads, hidReport(stream[:n]))
		stream = stream[n:]
	}
	dev := &scriptedDevice{reads: reads, end: io.EOF}
	sink := &collectingSink{}
	recorder := &frameLog{}
	s, _ := newTestSession(dev, sink)
	s.opts.Capture = recorder

	_ = s.Run(context.Background())
	if len(sink.readings) != len(displays) {
		t.Fatalf("got %d readings want %d", len(sink.readings), len(displays))
	}
	for i, r := range sink.readings {
		if r.Value != float64(i+1) {
			t.Fatalf("reading %d out of order: %v", i, r.Value)
		}
	}
	if len(recorder.frames) != len(displays) {
		t.Fatalf("recorded %d frames", len(recorder.frames))
	}
}

func TestConsecutiveIoFailuresEscalate(t *testing.T) {
	stall := errors.New("usb stall")
	dev := &scriptedDevice{end: stall}
	s, _ := newTestSession(dev, &collectingSink{})

	err := s.Run(context.Background())
	if !errors.Is(err, port_reader.ErrDeviceLost) || !errors.Is(err, stall) {
		t.Fatalf("expected escalated ErrDeviceLost wrapping the cause, got %v", err)
	}
}

func TestIoFailureCountResetsAfterSuccess(t *testing.T) {
	stall := errors.New("usb stall")
	good := frame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: "0.500"})
	dev := &scriptedDevice{
		reads: []readResult{
			{err: stall}, {err: stall},
			hidReport(good),
			{err: stall}, {err: stall},
			hidReport(good),
		},
		end: io.EOF,
	}
	sink := &collectingSink{}
	s, _ := newTestSession(dev, sink)

	err := s.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected to reach end of script, got %v", err)
	}
	if len(sink.readings) != 2 {
		t.Fatalf("got %d readings want 2", len(sink.readings))
	}
}

func TestPollIntervalSetsRequestRate(t *testing.T) {
	const interval = 40 * time.Millisecond
	logger, _ := test.NewNullLogger()
	reader := port_reader.NewFrameReader(simulator.New(1), port_reader.DefaultOptions())
	sink := &collectingSink{}
	s := New(reader, sink, Options{PollInterval: interval, Logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 600ms at one request per 40ms is 15 readings. Waiting out the read
	// timeout between requests would give about 2.
	if n := len(sink.readings); n < 10 || n > 16 {
		t.Fatalf("got %d readings in 600ms at a %s poll interval", n, interval)
	}
}

func TestGivingUpLogsDeviceState(t *testing.T) {
	partial := frame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: "1.000"})[:7]
	stall := errors.New("usb stall")
	dev := &scriptedDevice{reads: []readResult{hidReport(partial)}, end: stall}
	s, hook := newTestSession(dev, &collectingSink{})

	if err := s.Run(context.Background()); !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost, got %v", err)
	}
	for _, entry := range hook.AllEntries() {
		if entry.Message != "Giving up on device" {
			continue
		}
		if entry.Data["buffered"] != 7 {
			t.Fatalf("buffered: %v", entry.Data["buffered"])
		}
		if _, ok := entry.Data["idle"].(string); !ok {
			t.Fatalf("idle missing: %v", entry.Data)
		}
		return
	}
	t.Fatalf("no give-up entry logged")
}
