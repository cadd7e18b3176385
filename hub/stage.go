package hub

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/motion"
	"github.com/mastercactapus/grblhub/registry"
)

// Fixed stage geometry.
const (
	StepSizeUm = 0.05
	MaxStepsX  = 2200000
	MaxStepsY  = 1500000
)

// Stage is an XY stage driven through its hub's controller. Moves are
// asynchronous: Set*PositionSteps and Home return once the command is queued.
type Stage struct {
	hub  *Hub
	name string
	log  logger.Logger

	// lifecycle serializes Initialize and Shutdown; queries never take it.
	lifecycle sync.Mutex
	att       atomic.Pointer[attachment]
	homed     atomic.Bool
}

// attachment is the stage's hold on the hub's port while initialized.
type attachment struct {
	handle *registry.Handle
	worker *motion.Worker
}

func newStage(h *Hub, name string) *Stage {
	return &Stage{
		hub:  h,
		name: name,
		log:  h.cfg.log.With("device", name),
	}
}

// Name returns the device name the stage was created with.
func (s *Stage) Name() string { return s.name }

// Initialize attaches the stage to the hub's port. The hub must be ready.
func (s *Stage) Initialize() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.att.Load() != nil {
		return nil
	}

	port := s.hub.Port()
	if port == "" {
		return ErrNoPort
	}
	if !s.hub.Ready() {
		return ErrNotReady
	}
	handle, err := s.hub.reg.Acquire(port)
	if err != nil {
		return err
	}
	s.att.Store(&attachment{
		handle: handle,
		worker: motion.NewWorker(s.hub, s.log),
	})
	s.log.Info("stage initialized", "port", port)
	return nil
}

// Shutdown cancels a queued move, waits for the in-flight one and releases
// the port. Busy keeps reporting the worker while it drains.
func (s *Stage) Shutdown() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	a := s.att.Load()
	if a == nil {
		return
	}
	a.worker.Stop()
	a.worker.Close()
	s.att.Store(nil)
	s.hub.reg.Release(a.handle)
}

// running returns the worker for new commands. The stage must be attached to
// the port the hub is currently using.
func (s *Stage) running() (*motion.Worker, error) {
	a := s.att.Load()
	if a == nil {
		return nil, ErrNotReady
	}
	if a.handle.Name() != s.hub.Port() {
		return nil, fmt.Errorf("%w: stage attached to %s, hub uses %s", ErrNotReady, a.handle.Name(), s.hub.Port())
	}
	return a.worker, nil
}

func checkSteps(x, y int64) error {
	if x < 0 || x > MaxStepsX || y < 0 || y > MaxStepsY {
		return fmt.Errorf("%w: %d,%d", ErrOutOfRange, x, y)
	}
	return nil
}

// SetPositionSteps starts a move to the absolute step position x,y.
func (s *Stage) SetPositionSteps(x, y int64) error {
	if err := checkSteps(x, y); err != nil {
		return err
	}
	w, err := s.running()
	if err != nil {
		return err
	}
	return w.StartMove(float64(x), float64(y))
}

// SetRelativePositionSteps starts a move by dx,dy steps.
func (s *Stage) SetRelativePositionSteps(dx, dy int64) error {
	w, err := s.running()
	if err != nil {
		return err
	}
	return w.StartMoveRelative(float64(dx), float64(dy))
}

// Home starts the homing cycle. Positions are reported from then on.
func (s *Stage) Home() error {
	w, err := s.running()
	if err != nil {
		return err
	}
	err = w.StartHome()
	if err != nil {
		return err
	}
	s.homed.Store(true)
	return nil
}

// Stop cancels a move that has not been sent yet.
func (s *Stage) Stop() error {
	a := s.att.Load()
	if a == nil {
		return ErrNotReady
	}
	a.worker.Stop()
	return nil
}

// Busy reports whether a move is queued or running. It does no I/O and never
// waits.
func (s *Stage) Busy() bool {
	a := s.att.Load()
	if a == nil {
		return false
	}
	return a.worker.Busy()
}

// LastError returns the result of the last completed move.
func (s *Stage) LastError() error {
	a := s.att.Load()
	if a == nil {
		return ErrNotReady
	}
	return a.worker.LastError()
}

// PositionSteps returns the last work position the hub read, in steps. It
// is 0,0 until the stage has been homed.
func (s *Stage) PositionSteps() (x, y int64, err error) {
	if !s.homed.Load() {
		return 0, 0, nil
	}

	stat, err := s.hub.Status()
	if err != nil {
		return 0, 0, err
	}
	return int64(math.Round(stat.WPos.X)), int64(math.Round(stat.WPos.Y)), nil
}

// StepLimits returns the travel range in steps.
func (s *Stage) StepLimits() (xMin, xMax, yMin, yMax int64) {
	return 0, MaxStepsX, 0, MaxStepsY
}

// LimitsUm returns the travel range in microns.
func (s *Stage) LimitsUm() (xMin, xMax, yMin, yMax float64) {
	return 0, MaxStepsX * StepSizeUm, 0, MaxStepsY * StepSizeUm
}

// StepSizeUm returns the size of one step in microns.
func (s *Stage) StepSizeUm() float64 { return StepSizeUm }
