package transport

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Stream adapts an io.ReadWriteCloser into a Transport. A background goroutine
// pumps incoming bytes so ReadUntil can honor the answer timeout even when the
// underlying Read blocks.
//
// Stream is not safe for concurrent use.
type Stream struct {
	rwc     io.ReadWriteCloser
	idleEOF bool

	data    chan []byte
	closeCh chan struct{}
	done    chan struct{}
	readErr error

	closeOnce sync.Once

	pending []byte
	timeout time.Duration
}

var _ Transport = &Stream{}

// NewStream wraps rwc. If rwc has a Flush() error method, Purge calls it.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return newStream(rwc, false)
}

// newStream with idleEOF treats (0, io.EOF) from Read as "no data yet", which
// is how polling serial drivers report an expired read timeout.
func newStream(rwc io.ReadWriteCloser, idleEOF bool) *Stream {
	s := &Stream{
		rwc:     rwc,
		idleEOF: idleEOF,
		data:    make(chan []byte, 64),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
		timeout: DefaultAnswerTimeout,
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)
	buf := make([]byte, 256)
	for {
		n, err := s.rwc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.data <- chunk:
			case <-s.closeCh:
				return
			}
		}
		select {
		case <-s.closeCh:
			return
		default:
		}
		if err == io.EOF && s.idleEOF {
			continue
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

func (s *Stream) SetAnswerTimeout(d time.Duration) { s.timeout = d }

// AnswerTimeout returns the current answer timeout.
func (s *Stream) AnswerTimeout() time.Duration { return s.timeout }

func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.closeCh:
		return 0, ErrClosed
	default:
	}
	return s.rwc.Write(p)
}

func (s *Stream) ReadUntil(term []byte, maxLen int) ([]byte, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		window := s.pending
		if len(window) > maxLen {
			window = window[:maxLen]
		}
		if i := bytes.Index(window, term); i >= 0 {
			reply := append([]byte(nil), s.pending[:i]...)
			s.pending = s.pending[i+len(term):]
			return reply, nil
		}
		if len(s.pending) >= maxLen {
			s.pending = s.pending[:0]
			return nil, ErrOverflow
		}

		select {
		case chunk := <-s.data:
			s.pending = append(s.pending, chunk...)
		case <-timer.C:
			return nil, ErrTimeout
		case <-s.closeCh:
			return nil, ErrClosed
		case <-s.done:
			select {
			case chunk := <-s.data:
				s.pending = append(s.pending, chunk...)
				continue
			default:
			}
			if s.readErr != nil && s.readErr != io.EOF {
				return nil, fmt.Errorf("%w: %w", ErrClosed, s.readErr)
			}
			return nil, ErrClosed
		}
	}
}

func (s *Stream) Purge() error {
	s.pending = s.pending[:0]
drain:
	for {
		select {
		case <-s.data:
		default:
			break drain
		}
	}
	if f, ok := s.rwc.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close stops the reader and closes the underlying stream.
func (s *Stream) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.rwc.Close()
	})
	return err
}
