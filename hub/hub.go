// Package hub shares one Grbl controller between a hub device and the stage
// devices attached to it.
package hub

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mastercactapus/grblhub/coord"
	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/registry"
)

// DetectStatus is the result of probing the controller.
type DetectStatus int

const (
	Misconfigured DetectStatus = iota
	CannotCommunicate
	CanCommunicate
)

func (d DetectStatus) String() string {
	switch d {
	case CanCommunicate:
		return "can communicate"
	case CannotCommunicate:
		return "cannot communicate"
	}
	return "misconfigured"
}

// StageDevice is the name of the XY stage device a hub provides.
const StageDevice = "XYStage"

// ErrorReply is the diagnostic command result after a failure.
const ErrorReply = "Error!"

// State is a snapshot of what the hub last learned from the controller.
type State struct {
	Port       string      `json:"port"`
	Ready      bool        `json:"ready"`
	Version    string      `json:"version"`
	Status     string      `json:"status"`
	MPos       coord.Point `json:"mpos"`
	WPos       coord.Point `json:"wpos"`
	Parameters []float64   `json:"parameters"`
}

// Hub owns the session to one controller.
//
// Commands run on the caller's goroutine; the session serializes them. The
// cached state has its own lock that is never held during I/O.
type Hub struct {
	reg *registry.Registry
	cfg config
	log logger.Logger

	// lifecycle serializes SetPort and Shutdown.
	lifecycle sync.Mutex

	mx        sync.RWMutex
	port      string
	handle    *registry.Handle
	sess      *grbl.Session
	ready     bool
	version   string
	status    *grbl.Status
	params    []float64
	cmdResult string

	stages *xsync.MapOf[string, *Stage]
	states chan State
}

// New creates a Hub that opens ports through reg.
func New(reg *registry.Registry, opts ...Option) *Hub {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Hub{
		reg:    reg,
		cfg:    cfg,
		log:    cfg.log.With("device", "hub"),
		stages: xsync.NewMapOf[string, *Stage](),
		states: make(chan State, 16),
	}
}

// States delivers a snapshot after every successful status query. Snapshots
// are dropped when nobody is reading.
func (h *Hub) States() <-chan State { return h.states }

// SetPort switches the hub to the named port and brings the controller up:
// soft reset, firmware check, status and settings. On failure the hub is left
// not ready and the port is released.
func (h *Hub) SetPort(name string) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mx.Lock()
	prev := h.handle
	h.port = name
	h.handle, h.sess, h.ready = nil, nil, false
	h.version, h.status, h.params = "", nil, nil
	h.mx.Unlock()
	h.reg.Release(prev)

	if name == "" {
		return ErrNoPort
	}

	log := h.log.With("port", name)
	handle, err := h.reg.Acquire(name)
	if err != nil {
		log.Error("port open failed", "err", err)
		return err
	}
	sess := grbl.NewSession(handle.Transport(), append([]grbl.Option{grbl.WithLogger(log)}, h.cfg.sessOpts...)...)

	version, err := h.reset(sess)
	if err != nil {
		log.Error("initialization failed", "err", err)
		h.reg.Release(handle)
		return err
	}

	h.mx.Lock()
	h.handle, h.sess, h.version = handle, sess, version
	h.mx.Unlock()

	_, err = h.QueryStatus()
	if err == nil {
		_, err = h.ReadParameters()
	}
	if err != nil {
		log.Error("initialization failed", "err", err)
		h.mx.Lock()
		h.handle, h.sess = nil, nil
		h.mx.Unlock()
		h.reg.Release(handle)
		return err
	}

	h.mx.Lock()
	h.ready = true
	h.mx.Unlock()
	log.Info("hub ready", "version", version)
	return nil
}

// reset restarts the controller and checks its firmware version.
func (h *Hub) reset(sess *grbl.Session) (string, error) {
	version, err := sess.Reset()
	if grbl.IsTransport(err) {
		return "", fmt.Errorf("%w: %w", ErrBoardNotFound, err)
	}
	if err != nil {
		return "", err
	}
	if !grbl.Compatible(version, h.cfg.firmware) {
		return "", fmt.Errorf("%w: firmware %q, want %q", grbl.ErrMismatch, version, h.cfg.firmware)
	}
	return version, nil
}

// Initialize brings up the configured port.
func (h *Hub) Initialize() error {
	return h.SetPort(h.Port())
}

// Shutdown releases the port. Attached stages keep their own references
// until they shut down.
func (h *Hub) Shutdown() {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mx.Lock()
	prev := h.handle
	h.handle, h.sess, h.ready = nil, nil, false
	h.mx.Unlock()
	h.reg.Release(prev)
}

func (h *Hub) session() (*grbl.Session, error) {
	h.mx.RLock()
	defer h.mx.RUnlock()
	if h.port == "" {
		return nil, ErrNoPort
	}
	if h.sess == nil {
		return nil, ErrNotReady
	}
	return h.sess, nil
}

// SendCommand sends a raw command line and returns the reply.
func (h *Hub) SendCommand(cmd string) (string, error) {
	sess, err := h.session()
	if err != nil {
		return "", err
	}
	return sess.SendCommand(cmd)
}

// Command sends a diagnostic command every time it is called and keeps the
// reply, or ErrorReply on failure, for CommandResult.
func (h *Hub) Command(cmd string) (string, error) {
	reply, err := h.SendCommand(cmd)
	result := reply
	if err != nil {
		h.log.Warn("diagnostic command failed", "cmd", cmd, "err", err)
		result = ErrorReply
	}
	h.mx.Lock()
	h.cmdResult = result
	h.mx.Unlock()
	return result, err
}

// CommandResult returns the result of the last diagnostic command.
func (h *Hub) CommandResult() string {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return h.cmdResult
}

// QueryStatus asks the controller for its state and caches the result.
func (h *Hub) QueryStatus() (*grbl.Status, error) {
	sess, err := h.session()
	if err != nil {
		return nil, err
	}
	stat, err := sess.Status()
	if err != nil {
		return nil, err
	}

	h.mx.Lock()
	h.status = stat
	h.mx.Unlock()

	select {
	case h.states <- h.State():
	default:
	}
	return stat, nil
}

// Status returns the last status read from the controller.
func (h *Hub) Status() (grbl.Status, error) {
	h.mx.RLock()
	defer h.mx.RUnlock()
	if h.status == nil {
		return grbl.Status{}, ErrUnknownPosition
	}
	return *h.status, nil
}

// ReadParameters reads the settings table from the controller and caches it.
func (h *Hub) ReadParameters() ([]float64, error) {
	sess, err := h.session()
	if err != nil {
		return nil, err
	}
	params, err := sess.Parameters(h.cfg.paramCount)
	if err != nil {
		return nil, err
	}
	h.mx.Lock()
	h.params = params
	h.mx.Unlock()
	return append([]float64(nil), params...), nil
}

// Parameters returns the cached settings table.
func (h *Hub) Parameters() []float64 {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return append([]float64(nil), h.params...)
}

// SetParameter writes setting index and updates the cached table.
func (h *Hub) SetParameter(index int, value float64) error {
	if index < 0 || index >= h.cfg.paramCount {
		return fmt.Errorf("%w: parameter index %d", ErrOutOfRange, index)
	}
	sess, err := h.session()
	if err != nil {
		return err
	}
	err = sess.SetParameter(index, value)
	if err != nil {
		return err
	}
	h.mx.Lock()
	if index < len(h.params) {
		h.params[index] = value
	}
	h.mx.Unlock()
	return nil
}

// SetSync sends the board's axis synchronization command.
func (h *Hub) SetSync(axis int, value float64) error {
	_, err := h.SendCommand(grbl.SyncCommand(axis, value))
	return err
}

// Detect reports whether the controller answers a status query.
func (h *Hub) Detect() DetectStatus {
	if h.Port() == "" {
		return Misconfigured
	}
	if _, err := h.QueryStatus(); err != nil {
		h.log.Warn("detect failed", "err", err)
		return CannotCommunicate
	}
	return CanCommunicate
}

// DetectInstalledDevices lists the devices this hub can provide.
func (h *Hub) DetectInstalledDevices() []string {
	return []string{StageDevice}
}

// Busy is always false; hub commands complete before returning.
func (h *Hub) Busy() bool { return false }

// Port returns the configured port name, set even if bring-up failed.
func (h *Hub) Port() string {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return h.port
}

// Ready reports whether the last SetPort or Initialize succeeded.
func (h *Hub) Ready() bool {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return h.ready
}

// Version returns the firmware version from the last reset banner.
func (h *Hub) Version() string {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return h.version
}

// Stats returns the session's command counters.
func (h *Hub) Stats() grbl.Stats {
	sess, err := h.session()
	if err != nil {
		return grbl.Stats{}
	}
	return sess.Stats()
}

// State returns a snapshot of the cached state.
func (h *Hub) State() State {
	h.mx.RLock()
	defer h.mx.RUnlock()
	s := State{
		Port:       h.port,
		Ready:      h.ready,
		Version:    h.version,
		Parameters: append([]float64(nil), h.params...),
	}
	if h.status != nil {
		s.Status = h.status.State
		s.MPos = h.status.MPos
		s.WPos = h.status.WPos
	}
	return s
}

// Stage returns the named stage device, creating it on first use.
func (h *Hub) Stage(name string) *Stage {
	st, _ := h.stages.LoadOrCompute(name, func() *Stage {
		return newStage(h, name)
	})
	return st
}

// Stages returns the names of the stage devices created so far.
func (h *Hub) Stages() []string {
	var names []string
	h.stages.Range(func(name string, _ *Stage) bool {
		names = append(names, name)
		return true
	})
	return names
}
