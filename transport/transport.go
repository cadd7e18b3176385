// Package transport provides the byte channel a Grbl session runs over.
//
// A Transport is half duplex and not reentrant: callers (grbl.Session) must
// serialize Write/ReadUntil/Purge for a given port.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by ReadUntil when the terminator did not arrive
	// within the answer timeout.
	ErrTimeout = errors.New("transport: answer timeout")

	// ErrOverflow is returned by ReadUntil when maxLen bytes arrived without
	// the terminator.
	ErrOverflow = errors.New("transport: reply exceeds buffer")

	// ErrClosed is returned after Close or when the underlying stream ended.
	ErrClosed = errors.New("transport: closed")
)

// DefaultAnswerTimeout is used until SetAnswerTimeout is called.
const DefaultAnswerTimeout = 500 * time.Millisecond

// Transport is a line-oriented serial channel.
type Transport interface {
	Write(p []byte) (int, error)

	// ReadUntil returns the bytes received before term, consuming term.
	// It fails with ErrTimeout or ErrOverflow.
	ReadUntil(term []byte, maxLen int) ([]byte, error)

	// Purge discards any buffered input.
	Purge() error

	SetAnswerTimeout(d time.Duration)

	Close() error
}
