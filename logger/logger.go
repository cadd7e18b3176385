// Package logger is the structured logging front used by every grblhub package.
//
// Components accept a Logger through their options and fall back to the package
// default. Messages carry key/value pairs such as "port", "cmd" and "err".
package logger

import (
	"fmt"
	"strings"
)

// Level is a logging severity.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	}
	return fmt.Sprintf("level(%d)", int8(l))
}

// ParseLevel converts a flag value like "debug" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
}

// Logger is a levelled, structured logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs at error severity and then exits the process.
	Fatal(msg string, keysAndValues ...any)

	// With returns a child logger that adds keyValues to every message.
	With(keyValues ...any) Logger

	Level() Level
	SetLevel(level Level)
}
