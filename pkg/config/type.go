package config

const (
	OutputStyled = "styled"
	OutputCSV    = "csv"
)

const (
	DeviceHID      = "hid"
	DeviceSerial   = "serial"
	DeviceReplay   = "replay"
	DeviceSimulate = "simulate"
)

type LoggerConfig struct {
	// styled | csv
	OutputMode string `toml:"output_mode"`
	// hid | serial | replay | simulate
	Device       string `toml:"device"`
	SerialDevice string `toml:"serial_device"`
	Baudrate     uint   `toml:"baudrate"`

	ReadTimeoutMs        int `toml:"read_timeout_ms"`
	PollIntervalMs       int `toml:"poll_interval_ms"`
	MaxBufferedBytes     int `toml:"max_buffered_bytes"`
	MaxConsecutiveErrors int `toml:"max_consecutive_errors"`

	// Every assembled frame is appended here when set.
	CaptureFile string `toml:"capture_file"`
	// Source file for the replay device.
	ReplayFile string `toml:"replay_file"`

	DatabaseEnabled bool   `toml:"database_enabled"`
	DatabasePath    string `toml:"database_path"`

	// Empty disables the prometheus endpoint.
	MetricsAddress string `toml:"metrics_address"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}
