package capture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
)

func testFrames() []protocol.RawFrame {
	return []protocol.RawFrame{
		protocol.BuildFrame(protocol.FrameSpec{Mode: 2, Range: protocol.RangeBase, Display: "2.3450"}),
		protocol.BuildFrame(protocol.FrameSpec{Mode: 6, Range: protocol.RangeBase + 4, Display: "OL."}),
		protocol.BuildFrame(protocol.FrameSpec{Mode: 14, Range: protocol.RangeBase + 1, Display: "-12.34", FlagsA: protocol.FlagHold}),
	}
}

func writeCapture(t *testing.T, frames []protocol.RawFrame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.cap")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, f := range frames {
		if err := w.Record(f); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestLineRejectsCorruption(t *testing.T) {
	line := EncodeLine(testFrames()[0])
	if !strings.HasPrefix(line, "ABCD10") {
		t.Fatalf("unexpected line: %s", line)
	}
	if _, err := DecodeLine(line); err != nil {
		t.Fatalf("decode: %v", err)
	}

	corrupted := "ABCD11" + line[6:]
	if _, err := DecodeLine(corrupted); !errors.Is(err, ErrBadCRC) {
		t.Fatalf("expected ErrBadCRC, got %v", err)
	}
	if _, err := DecodeLine("ABCD10"); !errors.Is(err, ErrBadLine) {
		t.Fatalf("expected ErrBadLine, got %v", err)
	}
}

func TestReplayThroughFrameReader(t *testing.T) {
	frames := testFrames()
	path := writeCapture(t, frames)

	dev, err := OpenReplay(path, 0)
	if err != nil {
		t.Fatalf("open replay: %v", err)
	}
	reader := port_reader.NewFrameReader(dev, port_reader.DefaultOptions())
	defer reader.Close()

	if err := reader.Request(); err != nil {
		t.Fatalf("request: %v", err)
	}
	for i, want := range frames {
		chunk, err := reader.ReadChunk()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(chunk) != string(want[:]) {
			t.Fatalf("frame %d: got % X", i, chunk)
		}
	}
	if _, err := reader.ReadChunk(); !errors.Is(err, port_reader.ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost at end of capture, got %v", err)
	}
}

func TestReplaySkipsBadLines(t *testing.T) {
	frames := testFrames()
	content := "# captured by hand\n" +
		EncodeLine(frames[0]) + "\n" +
		"ABCD1000!FFFF\n" +
		"\n" +
		EncodeLine(frames[2]) + "\n"
	path := filepath.Join(t.TempDir(), "frames.cap")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dev, err := OpenReplay(path, 0)
	if err != nil {
		t.Fatalf("open replay: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 64)
	var got []protocol.RawFrame
	for {
		n, err := dev.ReadTimeout(buf, time.Second)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n != protocol.FrameSize+1 || int(buf[0]) != protocol.FrameSize {
			t.Fatalf("unexpected report: % X", buf[:n])
		}
		var f protocol.RawFrame
		copy(f[:], buf[1:n])
		got = append(got, f)
	}
	if len(got) != 2 || got[0] != frames[0] || got[1] != frames[2] {
		t.Fatalf("unexpected frames: %d", len(got))
	}
}

func TestReplayAfterClose(t *testing.T) {
	dev, err := OpenReplay(writeCapture(t, testFrames()), 0)
	if err != nil {
		t.Fatalf("open replay: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := dev.ReadTimeout(make([]byte, 64), time.Millisecond); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected os.ErrClosed, got %v", err)
	}
}
