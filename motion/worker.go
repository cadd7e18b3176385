// Package motion runs stage moves in the background, one at a time.
package motion

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/mastercactapus/grblhub/gcode"
	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/logger"
)

var (
	// ErrBusy is returned when a move is requested while another is queued
	// or running.
	ErrBusy = errors.New("motion: busy")

	// ErrStopped is the result of a request cancelled by Stop before it was
	// sent.
	ErrStopped = errors.New("motion: stopped")

	// ErrClosed is returned by Start* after Close.
	ErrClosed = errors.New("motion: closed")
)

// Commander sends one command and waits for its acknowledgement.
type Commander interface {
	SendCommand(cmd string) (string, error)
}

// Request is one XY move.
type Request struct {
	X, Y float64

	// Relative moves by X,Y from the current position.
	Relative bool
}

// Command returns the G-code line for r.
func (r Request) Command() string {
	if r.Relative {
		return gcode.RapidMove(r.X, r.Y).String()
	}
	return gcode.LinearMove(r.X, r.Y).String()
}

type job struct {
	cmd   string
	epoch uint64
}

// Worker owns a single goroutine that sends queued commands. At most one
// request is outstanding; Busy is true from a successful Start call until the
// command has completed.
type Worker struct {
	c   Commander
	log logger.Logger

	busy atomic.Bool
	jobs chan job
	done chan struct{}

	mx      sync.Mutex
	epoch   uint64
	lastErr error
	closed  bool
}

// NewWorker starts a worker sending through c.
func NewWorker(c Commander, log logger.Logger) *Worker {
	w := newWorker(c, log)
	go w.loop()
	return w
}

func newWorker(c Commander, log logger.Logger) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Worker{
		c:    c,
		log:  log,
		jobs: make(chan job, 1),
		done: make(chan struct{}),
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for j := range w.jobs {
		w.run(j)
	}
}

func (w *Worker) run(j job) {
	w.mx.Lock()
	stopped := j.epoch != w.epoch
	if stopped {
		w.lastErr = ErrStopped
	}
	w.mx.Unlock()
	if stopped {
		w.log.Info("move stopped", "cmd", j.cmd)
		w.busy.Store(false)
		return
	}

	_, err := w.c.SendCommand(j.cmd)
	if err != nil {
		w.log.Error("move failed", "cmd", j.cmd, "err", err)
	} else {
		w.log.Debug("move finished", "cmd", j.cmd)
	}

	w.mx.Lock()
	w.lastErr = err
	w.mx.Unlock()
	w.busy.Store(false)
}

func (w *Worker) start(cmd string) error {
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	w.mx.Lock()
	defer w.mx.Unlock()
	if w.closed {
		w.busy.Store(false)
		return ErrClosed
	}
	w.lastErr = nil
	w.jobs <- job{cmd: cmd, epoch: w.epoch}
	return nil
}

// Start queues r and returns immediately.
func (w *Worker) Start(r Request) error { return w.start(r.Command()) }

// StartMove moves to the absolute position x,y.
func (w *Worker) StartMove(x, y float64) error { return w.Start(Request{X: x, Y: y}) }

// StartMoveRelative moves by dx,dy.
func (w *Worker) StartMoveRelative(dx, dy float64) error {
	return w.Start(Request{X: dx, Y: dy, Relative: true})
}

// StartHome runs the homing cycle.
func (w *Worker) StartHome() error { return w.start(grbl.HomeCommand) }

// Busy reports whether a request is queued or running.
func (w *Worker) Busy() bool { return w.busy.Load() }

// LastError returns the result of the most recently completed request.
func (w *Worker) LastError() error {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.lastErr
}

// Stop cancels a request that has been queued but not yet sent. A command
// already on the wire runs to completion.
func (w *Worker) Stop() {
	w.mx.Lock()
	w.epoch++
	w.mx.Unlock()
}

// Close stops accepting requests and waits for the in-flight one to finish.
func (w *Worker) Close() error {
	w.mx.Lock()
	if w.closed {
		w.mx.Unlock()
		return ErrClosed
	}
	w.closed = true
	close(w.jobs)
	w.mx.Unlock()

	<-w.done
	return nil
}
