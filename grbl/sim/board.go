// Package sim is an in-memory Grbl 0.8c controller for tests and dry runs.
package sim

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/grblhub/coord"
	"github.com/mastercactapus/grblhub/gcode"
	"github.com/mastercactapus/grblhub/transport"
)

// Version is the firmware version the board reports.
const Version = "Grbl 0.8c"

var settings = []struct {
	value float64
	label string
}{
	{250, "x, step/mm"},
	{250, "y, step/mm"},
	{250, "z, step/mm"},
	{10, "step pulse, usec"},
	{250, "default feed, mm/min"},
	{500, "default seek, mm/min"},
	{192, "step port invert mask, int:11000000"},
	{25, "step idle delay, msec"},
	{10, "acceleration, mm/sec^2"},
	{0.05, "junction deviation, mm"},
	{0.1, "mm/arc segment"},
	{25, "n-arc correction, int"},
	{3, "n-decimals, int"},
	{0, "report inches, bool"},
	{1, "auto start, bool"},
	{0, "invert step enable, bool"},
	{0, "hard limits, bool"},
	{0, "homing cycle, bool"},
	{0, "homing dir invert mask, int:00000000"},
	{25, "homing feed, mm/min"},
	{250, "homing seek, mm/min"},
	{100, "homing debounce, msec"},
	{1, "homing pull-off, mm"},
}

// ParameterCount is the number of settings in a "$$" dump.
var ParameterCount = len(settings)

// Board implements transport.Transport by answering like a Grbl 0.8c
// controller. Replies are available immediately after Write; a ReadUntil that
// cannot find its terminator fails with transport.ErrTimeout without waiting.
type Board struct {
	mx sync.Mutex

	version string
	state   string
	pos     coord.Point
	wco     coord.Point
	params  []float64

	in      []byte
	out     bytes.Buffer
	lines   []string
	replies map[string]string

	timeout  time.Duration
	delay    time.Duration
	writeErr error
	closed   bool
}

var _ transport.Transport = (*Board)(nil)

// New returns an idle board at the origin with default settings.
func New() *Board {
	b := &Board{
		version: Version,
		state:   "Idle",
		replies: make(map[string]string),
		timeout: transport.DefaultAnswerTimeout,
	}
	b.params = make([]float64, len(settings))
	for i, s := range settings {
		b.params[i] = s.value
	}
	return b
}

// SetVersion changes the version printed in the reset banner.
func (b *Board) SetVersion(v string) {
	b.mx.Lock()
	b.version = v
	b.mx.Unlock()
}

// SetState changes the state name in status reports.
func (b *Board) SetState(s string) {
	b.mx.Lock()
	b.state = s
	b.mx.Unlock()
}

// SetWorkOffset sets the work coordinate offset; WPos is MPos minus wco.
func (b *Board) SetWorkOffset(p coord.Point) {
	b.mx.Lock()
	b.wco = p
	b.mx.Unlock()
}

// Respond makes the board answer cmd with reply verbatim instead of
// executing it.
func (b *Board) Respond(cmd, reply string) {
	b.mx.Lock()
	b.replies[cmd] = reply
	b.mx.Unlock()
}

// FailWrites makes every Write return err. A nil err restores normal writes.
func (b *Board) FailWrites(err error) {
	b.mx.Lock()
	b.writeErr = err
	b.mx.Unlock()
}

// SetMoveDelay makes each motion command take d before it is acknowledged.
func (b *Board) SetMoveDelay(d time.Duration) {
	b.mx.Lock()
	b.delay = d
	b.mx.Unlock()
}

// Lines returns every command line received, in order.
func (b *Board) Lines() []string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *Board) MPos() coord.Point {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.pos
}

func (b *Board) WPos() coord.Point {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.pos.Sub(b.wco)
}

// Parameter returns setting i.
func (b *Board) Parameter(i int) float64 {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.params[i]
}

func (b *Board) AnswerTimeout() time.Duration {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.timeout
}

func (b *Board) SetAnswerTimeout(d time.Duration) {
	b.mx.Lock()
	b.timeout = d
	b.mx.Unlock()
}

func (b *Board) Write(p []byte) (int, error) {
	b.mx.Lock()
	if b.closed {
		b.mx.Unlock()
		return 0, transport.ErrClosed
	}
	if b.writeErr != nil {
		err := b.writeErr
		b.mx.Unlock()
		return 0, err
	}

	var delay time.Duration
	b.in = append(b.in, p...)
	for {
		idx := bytes.IndexByte(b.in, '\n')
		if idx == -1 {
			break
		}
		line := strings.TrimRight(string(b.in[:idx]), "\r")
		b.in = b.in[idx+1:]
		b.lines = append(b.lines, line)
		if b.exec(line) {
			delay = b.delay
		}
	}
	b.mx.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return len(p), nil
}

// exec runs one line and queues its reply. It reports whether the line was a
// motion command.
func (b *Board) exec(line string) bool {
	if r, ok := b.replies[line]; ok {
		b.out.WriteString(r)
		return false
	}

	switch {
	case strings.HasPrefix(line, "\x18"):
		b.reset()
		return false
	case line == "?":
		wpos := b.pos.Sub(b.wco)
		fmt.Fprintf(&b.out, "<%s,MPos:%s,WPos:%s>\r\nok\r\n", b.state, b.pos, wpos)
		return false
	case line == "$$":
		for i, s := range settings {
			fmt.Fprintf(&b.out, "$%d=%.3f (%s)\r\n", i, b.params[i], s.label)
		}
		b.out.WriteString("ok\r\n")
		return false
	case line == "$H":
		b.pos = coord.Point{}
		b.state = "Idle"
		b.out.WriteString("ok\r\n")
		return false
	case strings.HasPrefix(line, "$"):
		b.setParam(line)
		return false
	}

	blk, err := gcode.ParseBlock(line)
	if err != nil {
		b.out.WriteString("error: Unsupported statement\r\n")
		return false
	}
	return b.run(blk)
}

func (b *Board) reset() {
	b.in = b.in[:0]
	b.state = "Idle"
	fmt.Fprintf(&b.out, "\r\n%s ['$' for help]\r\n", b.version)
}

func (b *Board) setParam(line string) {
	idx, val, ok := strings.Cut(line[1:], "=")
	if !ok {
		b.out.WriteString("error: Invalid statement\r\n")
		return
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(b.params) {
		b.out.WriteString("error: Invalid statement\r\n")
		return
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		b.out.WriteString("error: Bad number format\r\n")
		return
	}
	b.params[i] = v
	b.out.WriteString("ok\r\n")
}

// run applies a block. G01 moves to an absolute work position, G00 moves by
// an offset from the current position, M108 is accepted.
func (b *Board) run(blk gcode.Block) bool {
	if blk == nil {
		b.out.WriteString("ok\r\n")
		return false
	}
	if err := blk.Validate(); err != nil {
		b.out.WriteString("error: Invalid gcode\r\n")
		return false
	}

	switch blk[0] {
	case gcode.Word{W: 'M', Arg: 108}:
		b.out.WriteString("ok\r\n")
		return false
	case gcode.Word{W: 'G', Arg: 1}:
		b.pos = applyBlock(b.pos.Sub(b.wco), blk).Add(b.wco)
	case gcode.Word{W: 'G', Arg: 0}:
		b.pos = b.pos.Add(applyBlock(coord.Point{}, blk))
	default:
		b.out.WriteString("error: Unsupported statement\r\n")
		return false
	}
	b.out.WriteString("ok\r\n")
	return true
}

func applyBlock(p coord.Point, blk gcode.Block) coord.Point {
	for _, g := range blk {
		switch g.W {
		case 'X':
			p.X = g.Arg
		case 'Y':
			p.Y = g.Arg
		case 'Z':
			p.Z = g.Arg
		}
	}
	return p
}

func (b *Board) ReadUntil(term []byte, maxLen int) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return nil, transport.ErrClosed
	}

	buf := b.out.Bytes()
	window := buf
	if len(window) > maxLen {
		window = window[:maxLen]
	}
	idx := bytes.Index(window, term)
	if idx == -1 {
		if len(buf) >= maxLen {
			b.out.Next(maxLen)
			return nil, transport.ErrOverflow
		}
		return nil, transport.ErrTimeout
	}
	reply := append([]byte(nil), buf[:idx]...)
	b.out.Next(idx + len(term))
	return reply, nil
}

func (b *Board) Purge() error {
	b.mx.Lock()
	b.out.Reset()
	b.mx.Unlock()
	return nil
}

// Reopen makes a closed board usable again, keeping its position and
// settings, the way a controller outlives the serial port it is attached to.
func (b *Board) Reopen() *Board {
	b.mx.Lock()
	b.closed = false
	b.in = b.in[:0]
	b.out.Reset()
	b.mx.Unlock()
	return b
}

func (b *Board) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.closed {
		return transport.ErrClosed
	}
	b.closed = true
	return nil
}
