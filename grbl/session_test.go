package grbl

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/grblhub/transport"
)

// scripted answers each written line with a canned reply and records the
// calls made on it.
type scripted struct {
	mx      sync.Mutex
	replies map[string]string
	pending []byte
	ops     []string
	timeout time.Duration

	writeErr error
	readErr  error

	inflight int32
	overlaps int32
}

func newScripted(replies map[string]string) *scripted {
	return &scripted{replies: replies}
}

func (s *scripted) enter() {
	if atomic.AddInt32(&s.inflight, 1) > 1 {
		atomic.AddInt32(&s.overlaps, 1)
	}
	time.Sleep(time.Millisecond)
}
func (s *scripted) leave() { atomic.AddInt32(&s.inflight, -1) }

func (s *scripted) Write(p []byte) (int, error) {
	s.enter()
	defer s.leave()
	s.mx.Lock()
	defer s.mx.Unlock()
	s.ops = append(s.ops, "write "+string(p))
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.pending = append(s.pending, s.replies[string(bytes.TrimSuffix(p, []byte("\n")))]...)
	return len(p), nil
}

func (s *scripted) ReadUntil(term []byte, maxLen int) ([]byte, error) {
	s.enter()
	defer s.leave()
	s.mx.Lock()
	defer s.mx.Unlock()
	s.ops = append(s.ops, "read "+string(term))
	if s.readErr != nil {
		return nil, s.readErr
	}
	idx := bytes.Index(s.pending, term)
	if idx == -1 || idx > maxLen {
		return nil, transport.ErrTimeout
	}
	reply := append([]byte(nil), s.pending[:idx]...)
	s.pending = s.pending[idx+len(term):]
	return reply, nil
}

func (s *scripted) Purge() error {
	s.enter()
	defer s.leave()
	s.mx.Lock()
	defer s.mx.Unlock()
	s.ops = append(s.ops, "purge")
	s.pending = nil
	return nil
}

func (s *scripted) SetAnswerTimeout(d time.Duration) {
	s.mx.Lock()
	s.timeout = d
	s.mx.Unlock()
}

func (s *scripted) Close() error { return nil }

func TestSession_SendCommand_Status(t *testing.T) {
	tr := newScripted(map[string]string{
		"?": "<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>\r\nok\r\n",
	})
	s := NewSession(tr)

	stat, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, "Idle", stat.State)
	assert.Equal(t, DefaultLongTimeout, tr.timeout)
	assert.Equal(t, []string{"purge", "write ?\n", "read ok\r\n"}, tr.ops)

	// the terminator may follow the report directly
	tr.replies["?"] = "<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>ok\r\n"
	stat, err = s.Status()
	require.NoError(t, err)
	assert.Equal(t, &Status{State: "Idle"}, stat)
}

func TestSession_SendCommand_Motion(t *testing.T) {
	tr := newScripted(map[string]string{
		"G01X100Y200": "ok\r\n",
		"G01X1Y1":     "error: Soft limit\r\n",
	})
	s := NewSession(tr)

	reply, err := s.SendCommand("G01X100Y200")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, DefaultShortTimeout, tr.timeout)

	reply, err = s.SendCommand("G01X1Y1")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "error: Soft limit", reply)

	// no reply at all
	_, err = s.SendCommand("G01X2Y2")
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, transport.ErrTimeout)

	assert.Equal(t, Stats{Sent: 3, Failed: 2}, s.Stats())
}

func TestSession_SendCommand_EmptyReply(t *testing.T) {
	tr := newScripted(map[string]string{"M108P1.000Q0": "\r\n"})
	s := NewSession(tr)

	_, err := s.SendCommand("M108P1.000Q0")
	assert.ErrorIs(t, err, ErrRead)
}

func TestSession_SendCommand_WriteError(t *testing.T) {
	tr := newScripted(nil)
	tr.writeErr = errors.New("unplugged")
	s := NewSession(tr)

	_, err := s.SendCommand("?")
	assert.ErrorIs(t, err, ErrWrite)
	assert.True(t, IsTransport(err))
	assert.Equal(t, []string{"purge", "write ?\n"}, tr.ops)
}

func TestSession_SendCommand_ReadError(t *testing.T) {
	tr := newScripted(nil)
	tr.readErr = transport.ErrClosed
	s := NewSession(tr)

	_, err := s.SendCommand("$$")
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestSession_SendCommand_PurgesStaleInput(t *testing.T) {
	tr := newScripted(map[string]string{"G01X1Y1": "ok\r\n"})
	tr.pending = []byte("error: stale\r\n")
	s := NewSession(tr)

	reply, err := s.SendCommand("G01X1Y1")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestSession_Timeouts(t *testing.T) {
	tr := newScripted(map[string]string{"$$": "ok\r\n", "G0": "ok\r\n"})
	s := NewSession(tr, WithLongTimeout(time.Second), WithShortTimeout(10*time.Millisecond), WithLongTimeout(0))

	_, err := s.SendCommand("$$")
	require.NoError(t, err)
	assert.Equal(t, time.Second, tr.timeout)

	_, err = s.SendCommand("G0")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, tr.timeout)
}

func TestSession_Reset(t *testing.T) {
	tr := newScripted(map[string]string{"\x18": "\r\nGrbl 0.8c ['$' for help]\r\n"})
	s := NewSession(tr)

	v, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, "Grbl 0.8c ", v)
	assert.Equal(t, DefaultResetTimeout, tr.timeout)
	assert.Equal(t, "write \x18\n", tr.ops[1])

	tr.replies["\x18"] = "Grbl [x [y]\r\n"
	_, err = s.Reset()
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestSession_Parameters(t *testing.T) {
	tr := newScripted(map[string]string{
		"$$":       "$0=250.000 (x, step/mm)\r\n$1=0.100 (y, step/mm)\r\nok\r\n",
		"$1=0.200": "ok\r\n",
		"$9=1.000": "error: Invalid statement\r\n",
	})
	s := NewSession(tr)

	params, err := s.Parameters(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{250, 0.1}, params)

	_, err = s.Parameters(23)
	assert.ErrorIs(t, err, ErrParse)

	require.NoError(t, s.SetParameter(1, 0.2))

	// long framing reads until "ok\r\n", which never comes
	err = s.SetParameter(9, 1)
	assert.ErrorIs(t, err, ErrRead)
}

func TestSession_Serialized(t *testing.T) {
	tr := newScripted(map[string]string{
		"?":       "<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>\r\nok\r\n",
		"G01X1Y1": "ok\r\n",
	})
	s := NewSession(tr)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				var err error
				if i == 0 {
					_, err = s.Status()
				} else {
					_, err = s.SendCommand("G01X1Y1")
				}
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&tr.overlaps))
	assert.Equal(t, int64(40), s.Stats().Sent)
}
