package capture

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sigurn/crc16"
)

var (
	ErrBadLine = errors.New("capture: malformed line")
	ErrBadCRC  = errors.New("capture: crc mismatch")
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Writer appends frames to a capture file, one "<hex>!<crc>" line each.
type Writer struct {
	mu     sync.Mutex
	out    *bufio.Writer
	closer io.Closer
}

// ReplayDevice serves a capture file as if a meter were sending it.
type ReplayDevice struct {
	mu       sync.Mutex
	file     *os.File
	scanner  *bufio.Scanner
	line     int
	interval time.Duration
	lastRead time.Time
	closed   bool
}
