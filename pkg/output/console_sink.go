package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/NotCoffee418/ut61e_logger/pkg/types"
	"github.com/mattn/go-colorable"
	"golang.org/x/term"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// ConsoleSink prints one human readable line per reading.
type ConsoleSink struct {
	out   io.Writer
	color bool
}

// NewConsoleSink colors its output only when f is a terminal.
func NewConsoleSink(f *os.File) *ConsoleSink {
	if term.IsTerminal(int(f.Fd())) {
		return &ConsoleSink{out: colorable.NewColorable(f), color: true}
	}
	return &ConsoleSink{out: f}
}

func NewConsoleSinkWriter(out io.Writer, color bool) *ConsoleSink {
	return &ConsoleSink{out: out, color: color}
}

func (s *ConsoleSink) Emit(reading types.Reading) error {
	_, err := fmt.Fprintln(s.out, s.format(reading))
	return err
}

func (s *ConsoleSink) format(reading types.Reading) string {
	valueColor := ansiGreen
	if reading.Overflow {
		valueColor = ansiRed
	}

	var b strings.Builder
	b.WriteString(reading.Timestamp.Format("15:04:05.000"))
	b.WriteString("  ")
	b.WriteString(s.paint(ansiCyan, fmt.Sprintf("%-17s", reading.Function)))
	b.WriteString(" ")
	b.WriteString(s.paint(ansiBold+valueColor, fmt.Sprintf("%10s", reading.FormatValue())))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-4s", reading.Unit))
	b.WriteString(fmt.Sprintf(" [%s %d]", reading.Range.Mode, reading.Range.Step))
	if flags := reading.Flags.String(); flags != "" {
		b.WriteString(" ")
		b.WriteString(s.paint(ansiYellow, flags))
	}
	return b.String()
}

func (s *ConsoleSink) paint(code, text string) string {
	if !s.color {
		return text
	}
	return code + text + ansiReset
}
