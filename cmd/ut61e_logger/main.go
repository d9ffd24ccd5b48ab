// ut61e_logger reads a UNI-T UT61E+ over its USB cable and writes every
// reading to stdout, either styled for a terminal or as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/capture"
	"github.com/NotCoffee418/ut61e_logger/pkg/config"
	"github.com/NotCoffee418/ut61e_logger/pkg/logging"
	"github.com/NotCoffee418/ut61e_logger/pkg/metrics"
	"github.com/NotCoffee418/ut61e_logger/pkg/output"
	"github.com/NotCoffee418/ut61e_logger/pkg/pathing"
	"github.com/NotCoffee418/ut61e_logger/pkg/port_reader"
	"github.com/NotCoffee418/ut61e_logger/pkg/readingdb"
	"github.com/NotCoffee418/ut61e_logger/pkg/session"
	"github.com/NotCoffee418/ut61e_logger/pkg/simulator"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "config file (default "+config.DefaultConfigPath()+")")
	mode := flag.String("mode", "", "output mode: styled or csv")
	device := flag.String("device", "", "meter source: hid, serial, replay or simulate")
	capturePath := flag.String("capture", "", "append every received frame to this file")
	replayPath := flag.String("replay", "", "read frames from a capture file instead of a meter")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *mode != "" {
		cfg.OutputMode = *mode
	}
	if *replayPath != "" {
		cfg.ReplayFile = *replayPath
		cfg.Device = config.DeviceReplay
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *capturePath != "" {
		cfg.CaptureFile = *capturePath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		if errors.Is(err, port_reader.ErrDeviceLost) {
			fmt.Fprintf(os.Stderr, "Lost connection to the meter: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.LoggerConfig, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	if err := config.LoadLoggerConfig(); err != nil {
		// Unprivileged users cannot write the system config; run on defaults.
		if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
			return config.DefaultLoggerConfig(), nil
		}
		return nil, err
	}
	return config.ActiveLoggerConfig, nil
}

func run(cfg *config.LoggerConfig, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, readerOpts, err := openDevice(cfg)
	if err != nil {
		return err
	}
	reader := port_reader.NewFrameReader(dev, readerOpts)

	sinks := output.MultiSink{}
	if cfg.OutputMode == config.OutputCSV {
		sinks = append(sinks, output.NewCSVSink(os.Stdout))
	} else {
		sinks = append(sinks, output.NewConsoleSink(os.Stdout))
	}

	if cfg.DatabaseEnabled {
		if err := pathing.EnsureDirs(); err != nil {
			reader.Close()
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := readingdb.Open(cfg.DatabasePath)
		if err != nil {
			reader.Close()
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	opts := session.Options{
		PollInterval:         cfg.PollInterval(),
		MaxBuffered:          cfg.MaxBufferedBytes,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Logger:               log,
	}
	if cfg.CaptureFile != "" {
		w, err := capture.Create(cfg.CaptureFile)
		if err != nil {
			reader.Close()
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer w.Close()
		opts.Capture = w
	}

	if cfg.MetricsAddress != "" {
		srv := startMetricsServer(cfg.MetricsAddress, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sess := session.New(reader, sinks, opts)
	err = sess.Run(ctx)

	if last, ok := sess.Latest(); ok {
		log.WithField("reading", string(last.ToJsonBytes())).Info("Last reading")
	}
	// The end of a replayed capture is not a failure.
	if cfg.Device == config.DeviceReplay && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func openDevice(cfg *config.LoggerConfig) (port_reader.Device, port_reader.Options, error) {
	opts := port_reader.DefaultOptions()
	opts.ReadTimeout = cfg.ReadTimeout()

	switch cfg.Device {
	case config.DeviceSerial:
		opts.HIDReports = false
		dev, err := port_reader.OpenSerial(cfg.SerialDevice, cfg.Baudrate, cfg.ReadTimeout())
		return dev, opts, err
	case config.DeviceReplay:
		dev, err := capture.OpenReplay(cfg.ReplayFile, cfg.PollInterval())
		return dev, opts, err
	case config.DeviceSimulate:
		return simulator.New(uint64(time.Now().UnixNano())), opts, nil
	default:
		dev, _, err := port_reader.OpenHID()
		return dev, opts, err
	}
}

func startMetricsServer(addr string, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.WithField("address", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	return srv
}
