package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const EnvLogLevel = "UT61E_LOG_LEVEL"

// New builds the process logger. Records go to stderr so stdout stays free
// for reading output.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(level, format, os.Stderr)
}

func NewWithOutput(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		level = env
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// Packages that log through the standard logrus logger follow suit.
	logrus.SetOutput(out)
	logrus.SetLevel(parsed)
	logrus.SetFormatter(log.Formatter)

	return log
}
