// Package privilege acquires, once per process, the OS privilege needed to
// lock pages in physical memory, which large-page mappings require.
package privilege

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/logger"
)

// State is the cached outcome of a privilege request.
type State uint32

const (
	Unchecked State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "invalid"
	}
}

var (
	// ErrLookup indicates the privilege identifier could not be resolved.
	ErrLookup = errors.New("privilege: lookup failed")

	// ErrOpenToken indicates the process token (or limit set) could not be opened for adjustment.
	ErrOpenToken = errors.New("privilege: open process token failed")

	// ErrAdjust indicates the OS rejected the adjustment.
	ErrAdjust = errors.New("privilege: adjust failed")

	// ErrNotAllAssigned indicates the adjustment only partially succeeded.
	ErrNotAllAssigned = errors.New("privilege: not all privileges assigned")

	// ErrUnsupported indicates the platform has no lock-memory privilege to acquire.
	ErrUnsupported = errors.New("privilege: unsupported platform")
)

// Acquirer performs the OS interaction that enables the privilege.
type Acquirer interface {
	Acquire() error
}

// AcquirerFunc adapts a function to Acquirer.
type AcquirerFunc func() error

func (f AcquirerFunc) Acquire() error { return f() }

// Gate caches the result of a single Acquirer call. Concurrent first callers
// block until the winner publishes the terminal state.
type Gate struct {
	acquirer Acquirer
	once     sync.Once
	state    atomic.Uint32
	err      error // set inside once; read only after state is terminal
}

// New returns a gate over a.
func New(a Acquirer) *Gate {
	return &Gate{acquirer: a}
}

// Acquire reports whether the privilege is held, asking the OS only on the
// first call.
func (g *Gate) Acquire() bool {
	if s := State(g.state.Load()); s != Unchecked {
		return s == Granted
	}
	g.once.Do(g.acquire)
	return State(g.state.Load()) == Granted
}

func (g *Gate) acquire() {
	if err := g.acquirer.Acquire(); err != nil {
		g.err = err
		g.state.Store(uint32(Denied))
		logger.Debug("lock memory privilege denied", "error", err)
		return
	}
	g.state.Store(uint32(Granted))
	logger.Debug("lock memory privilege granted")
}

// State returns the cached state without triggering acquisition.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Err returns why the privilege was denied, or nil.
func (g *Gate) Err() error {
	if g.State() != Denied {
		return nil
	}
	return g.err
}
