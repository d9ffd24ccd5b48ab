package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ut61e"

// Decode error kinds.
const (
	KindSegment = "segment"
	KindMode    = "mode"
	KindBlank   = "blank"
	KindOther   = "other"
)

var (
	registerOnce sync.Once

	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assembler",
		Name:      "frames_total",
		Help:      "Complete frames assembled from the device stream.",
	})
	ResyncBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assembler",
		Name:      "resync_bytes_total",
		Help:      "Bytes discarded while searching for a frame boundary.",
	})
	DroppedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assembler",
		Name:      "dropped_bytes_total",
		Help:      "Stale or overflowing bytes discarded from the backlog.",
	})
	ReadingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "readings_total",
		Help:      "Readings emitted to sinks.",
	})
	DecodeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "decode_errors_total",
		Help:      "Frames skipped because their content could not be decoded.",
	}, []string{"kind"})
	IoFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "io_failures_total",
		Help:      "Transient device read or write failures.",
	})
	SinkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "sink_errors_total",
		Help:      "Readings a sink failed to write.",
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FramesTotal,
			ResyncBytesTotal,
			DroppedBytesTotal,
			ReadingsTotal,
			DecodeErrorsTotal,
			IoFailuresTotal,
			SinkErrorsTotal,
		)
	})
}

// Handler serves the registered metrics for scraping.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
