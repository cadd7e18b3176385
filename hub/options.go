package hub

import (
	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/logger"
)

const (
	// DefaultFirmware is the known-good firmware version, matched by prefix.
	DefaultFirmware = "Grbl 0.8c"

	// DefaultParameterCount is the number of settings Grbl 0.8c reports.
	DefaultParameterCount = 23
)

type config struct {
	firmware   string
	paramCount int
	log        logger.Logger
	sessOpts   []grbl.Option
}

func defaultConfig() config {
	return config{
		firmware:   DefaultFirmware,
		paramCount: DefaultParameterCount,
		log:        logger.GetLogger(),
	}
}

// Option configures a Hub.
type Option func(*config)

// WithFirmware sets the firmware version the controller must report.
func WithFirmware(version string) Option {
	return func(c *config) {
		if version != "" {
			c.firmware = version
		}
	}
}

// WithParameterCount sets how many settings a "$$" dump contains.
func WithParameterCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.paramCount = n
		}
	}
}

// WithLogger sets the logger for the hub and its stages.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSessionOptions passes opts to every session the hub creates.
func WithSessionOptions(opts ...grbl.Option) Option {
	return func(c *config) {
		c.sessOpts = append(c.sessOpts, opts...)
	}
}
