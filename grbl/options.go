package grbl

import (
	"time"

	"github.com/mastercactapus/grblhub/logger"
)

// Default answer timeouts. Queries and parameter dumps can take a while on
// the controller, interactive acknowledgements are quick.
const (
	DefaultLongTimeout  = 1500 * time.Millisecond
	DefaultShortTimeout = 100 * time.Millisecond
	DefaultResetTimeout = 2000 * time.Millisecond
)

type config struct {
	longTimeout  time.Duration
	shortTimeout time.Duration
	resetTimeout time.Duration
	log          logger.Logger
}

func defaultConfig() config {
	return config{
		longTimeout:  DefaultLongTimeout,
		shortTimeout: DefaultShortTimeout,
		resetTimeout: DefaultResetTimeout,
		log:          logger.GetLogger(),
	}
}

// Option configures a Session.
type Option func(*config)

// WithLongTimeout sets the answer timeout for '$' and '?' commands.
func WithLongTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.longTimeout = d
		}
	}
}

// WithShortTimeout sets the answer timeout for all other commands.
func WithShortTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shortTimeout = d
		}
	}
}

// WithResetTimeout sets the answer timeout for the soft reset banner.
func WithResetTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.resetTimeout = d
		}
	}
}

// WithLogger sets the logger for command failures and replies.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}
