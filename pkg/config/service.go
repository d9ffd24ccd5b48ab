package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/ut61e_logger/pkg/pathing"
)

var ActiveLoggerConfig *LoggerConfig

func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputMode:           OutputStyled,
		Device:               DeviceHID,
		SerialDevice:         "/dev/ttyUSB0",
		Baudrate:             9600,
		ReadTimeoutMs:        500,
		PollIntervalMs:       1000 / 6,
		MaxBufferedBytes:     256,
		MaxConsecutiveErrors: 10,
		DatabasePath:         pathing.GetReadingDbPath(),
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

func DefaultConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "logger.toml")
}

func LoadLoggerConfig() error {
	cfg, err := LoadFrom(DefaultConfigPath())
	if err != nil {
		return err
	}
	ActiveLoggerConfig = cfg
	return nil
}

// LoadFrom reads the config at path, writing the defaults there first if
// the file does not exist yet.
func LoadFrom(path string) (*LoggerConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultLoggerConfig()
		cfgFile, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	// Keys missing from the file keep their defaults.
	cfg := DefaultLoggerConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *LoggerConfig) Validate() error {
	switch c.OutputMode {
	case OutputStyled, OutputCSV:
	default:
		return fmt.Errorf("invalid output_mode %q, expected %q or %q", c.OutputMode, OutputStyled, OutputCSV)
	}
	switch c.Device {
	case DeviceHID, DeviceSerial, DeviceSimulate:
	case DeviceReplay:
		if c.ReplayFile == "" {
			return fmt.Errorf("device %q requires replay_file", DeviceReplay)
		}
	default:
		return fmt.Errorf("invalid device %q", c.Device)
	}
	if c.ReadTimeoutMs <= 0 || c.PollIntervalMs < 0 || c.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("timeouts and error limits must be positive")
	}
	return nil
}

func (c *LoggerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c *LoggerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
