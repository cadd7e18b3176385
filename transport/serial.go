package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Grbl 0.8 firmware talks at 9600 baud.
const (
	DefaultBaud         = 9600
	DefaultPollInterval = 100 * time.Millisecond
)

// Config describes a local serial port.
type Config struct {
	// Name is the device path or COM name, e.g. /dev/ttyUSB0 or COM4.
	Name string
	Baud int

	// PollInterval bounds each driver-level read so the reader goroutine
	// notices Close.
	PollInterval time.Duration
}

// DefaultConfig returns a Config for name with default settings.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		Baud:         DefaultBaud,
		PollInterval: DefaultPollInterval,
	}
}

// OpenSerial opens a local serial port. Handshaking is off.
func OpenSerial(cfg Config) (*Stream, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("transport: device name required")
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.PollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Name, err)
	}
	return newStream(p, true), nil
}
