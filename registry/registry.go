// Package registry shares open serial transports between the hub and the
// devices that depend on it.
//
// Handles are reference counted: the first Acquire of a name opens the port,
// the Release that drops the count to zero closes it. All table mutations go
// through one mutex that is independent of any per-session command lock.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/transport"
)

var (
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("registry: closed")

	// ErrOpen wraps failures to open a port.
	ErrOpen = errors.New("registry: open failed")
)

// Opener opens the transport for a port name.
type Opener func(name string) (transport.Transport, error)

// Handle is an owner's token for one shared port.
type Handle struct {
	name string
	t    transport.Transport

	// guarded by Registry.mx
	refs        int
	initialized bool
}

// Name returns the port name the handle was acquired for.
func (h *Handle) Name() string { return h.name }

// Transport returns the shared transport. It must not be closed by the caller.
func (h *Handle) Transport() transport.Transport { return h.t }

// Registry owns every open port handle.
type Registry struct {
	open Opener
	log  logger.Logger

	mx      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// New creates a Registry that opens ports with open. A nil log uses the
// default logger.
func New(open Opener, log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		open:    open,
		log:     log,
		handles: make(map[string]*Handle),
	}
}

// Acquire returns the handle for name, opening the port if nobody holds it.
func (r *Registry) Acquire(name string) (*Handle, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty port name", ErrOpen)
	}

	r.mx.Lock()
	defer r.mx.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	if h, ok := r.handles[name]; ok {
		h.refs++
		h.init()
		r.log.Debug("adding reference to port", "port", name, "refs", h.refs)
		return h, nil
	}

	t, err := r.open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, name, err)
	}
	h := &Handle{name: name, t: t, refs: 1}
	h.init()
	r.handles[name] = h
	r.log.Info("opened port", "port", name)
	return h, nil
}

// init prepares the handle; running it again is harmless.
func (h *Handle) init() {
	if h.initialized {
		return
	}
	h.t.SetAnswerTimeout(transport.DefaultAnswerTimeout)
	h.initialized = true
}

// Release drops one reference to h and closes the port when none remain.
// Releasing nil, a handle from another registry, or an already destroyed
// handle does nothing.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}

	r.mx.Lock()
	defer r.mx.Unlock()

	if r.handles[h.name] != h {
		return
	}
	h.refs--
	r.log.Debug("removing reference to port", "port", h.name, "refs", h.refs)
	if h.refs > 0 {
		return
	}
	r.destroy(h)
}

func (r *Registry) destroy(h *Handle) {
	delete(r.handles, h.name)
	h.refs = 0
	h.initialized = false
	if err := h.t.Close(); err != nil {
		r.log.Warn("close port", "port", h.name, "err", err)
		return
	}
	r.log.Info("closed port", "port", h.name)
}

// Refs returns the reference count for name, 0 if it is not open.
func (r *Registry) Refs(name string) int {
	r.mx.Lock()
	defer r.mx.Unlock()
	if h, ok := r.handles[name]; ok {
		return h.refs
	}
	return 0
}

// Len returns the number of open ports.
func (r *Registry) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.handles)
}

// Close destroys every handle regardless of outstanding references. Later
// Release calls on those handles are no-ops.
func (r *Registry) Close() {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.closed = true
	for _, h := range r.handles {
		r.destroy(h)
	}
}
