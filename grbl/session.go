// Package grbl speaks the Grbl 0.8c request/response protocol over a
// transport.Transport.
package grbl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mastercactapus/grblhub/transport"
)

// Session is the command/response engine for one controller.
//
// The line protocol is half duplex and replies carry no correlation, so a
// Session allows exactly one command on the wire at a time: the purge, write
// and read of each round trip happen under one lock.
type Session struct {
	t   transport.Transport
	cfg config

	mx sync.Mutex

	sent   *xsync.Counter
	failed *xsync.Counter
}

// Stats counts round trips on a Session.
type Stats struct {
	Sent   int64
	Failed int64
}

// NewSession creates a Session over t. The Session does not own t.
func NewSession(t transport.Transport, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		t:      t,
		cfg:    cfg,
		sent:   xsync.NewCounter(),
		failed: xsync.NewCounter(),
	}
}

// SendCommand writes cmd and returns the controller's reply without its
// terminator.
//
// Commands starting with '$' or '?' wait up to the long timeout for a reply
// ending in "ok\r\n". Everything else waits up to the short timeout for one
// line, which must contain "ok"; otherwise ErrRejected is returned along with
// the reply.
func (s *Session) SendCommand(cmd string) (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	reply, err := s.roundTrip(cmd, s.frameFor(cmd))
	if err != nil {
		s.failed.Inc()
	}
	return reply, err
}

func (s *Session) roundTrip(cmd string, f frame) (string, error) {
	log := s.cfg.log
	s.t.SetAnswerTimeout(f.timeout)

	err := s.t.Purge()
	if err != nil {
		return "", fmt.Errorf("%w: purge before %q: %w", ErrWrite, cmd, err)
	}

	s.sent.Inc()
	_, err = s.t.Write([]byte(cmd + lineEnd))
	if err != nil {
		log.Error("command write fail", "cmd", cmd, "err", err)
		return "", fmt.Errorf("%w: %q: %w", ErrWrite, cmd, err)
	}

	data, err := s.t.ReadUntil(f.term, f.maxLen)
	if err != nil {
		log.Error("answer get error", "cmd", cmd, "err", err)
		return "", fmt.Errorf("%w: %q: %w", ErrRead, cmd, err)
	}
	reply := string(data)
	log.Debug("reply", "cmd", cmd, "reply", reply)

	if !f.ack {
		return reply, nil
	}
	if len(reply) == 0 {
		return "", fmt.Errorf("%w: %q: empty reply", ErrRead, cmd)
	}
	if !strings.Contains(reply, "ok") {
		return reply, fmt.Errorf("%w: %q: %q", ErrRejected, cmd, reply)
	}
	return reply, nil
}

// Reset sends the soft-reset byte and returns the firmware version from the
// banner the controller prints on restart.
func (s *Session) Reset() (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	reply, err := s.roundTrip(string(rune(resetByte)), frame{
		timeout: s.cfg.resetTimeout,
		term:    termBanner,
		maxLen:  resetReplySize,
	})
	if err != nil {
		s.failed.Inc()
		return "", err
	}
	version, err := ParseBanner(reply)
	if err != nil {
		s.failed.Inc()
		return "", err
	}
	s.cfg.log.Info("controller reset", "version", version)
	return version, nil
}

// Status queries the controller's state and positions.
func (s *Session) Status() (*Status, error) {
	reply, err := s.SendCommand("?")
	if err != nil {
		return nil, err
	}
	return ParseStatus(reply)
}

// Parameters reads the n firmware settings in firmware order.
func (s *Session) Parameters(n int) ([]float64, error) {
	reply, err := s.SendCommand("$$")
	if err != nil {
		return nil, err
	}
	return ParseParameters(reply, n)
}

// SetParameter writes firmware setting index.
func (s *Session) SetParameter(index int, value float64) error {
	_, err := s.SendCommand(SetParameterCommand(index, value))
	return err
}

// Stats returns the number of commands sent and failed so far.
func (s *Session) Stats() Stats {
	return Stats{Sent: s.sent.Value(), Failed: s.failed.Value()}
}
