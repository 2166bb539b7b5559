package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/syndb/syndb/lib/bridge"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/logging"
)

var Logger = logging.GetLogger("engine")

// ErrClosed is returned for operations on an engine after Close
var ErrClosed = errors.New("engine: engine is closed")

// engineSeq numbers engine instances; every engine name carries it so
// metric labels never collide
var engineSeq atomic.Uint64

// Engine is the asynchronous entry point to one database. It owns the driver
// backend, a connection pool, and the binding to the scheduling context
// (bridge portal) its operations run on.
//
// Portal binding follows first use: the first operation binds the engine to
// the portal carried by its context (or to an engine-owned portal when the
// context carries none). Using the engine from a different portal afterwards
// fails with bridge.ErrCrossPortal; Dispose clears the binding so the engine
// can move to a new scheduling context.
//
// An Engine is safe for concurrent use.
type Engine struct {
	name string
	cfg  Config
	drv  driver.Driver
	pool connPool

	bound   atomic.Pointer[bridge.Portal] // portal of first use
	owned   atomic.Pointer[bridge.Portal] // lazily created default portal
	ownedMu sync.Mutex

	closed atomic.Bool
}

// Connect creates an engine from a DSN, opening the backend registered for
// the DSN's scheme. See ParseDSN for the DSN format.
func Connect(dsn string) (*Engine, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	opener, err := openerFor(cfg.Scheme)
	if err != nil {
		return nil, err
	}

	drv, err := opener(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Scheme, err)
	}

	return New(cfg, drv), nil
}

// New creates an engine on an already-opened driver backend.
func New(cfg Config, drv driver.Driver) *Engine {
	name := cfg.Params.Get("name")
	if name == "" {
		name = cfg.Scheme
	}
	// The sequence suffix keeps instance names unique even when two engines
	// share a name param; the idle gauge closes over exactly one pool, so a
	// reused metric label would stay bound to the first engine forever.
	name = fmt.Sprintf("%s-%d", name, engineSeq.Add(1))

	m := newPoolMetrics(name)

	var pool connPool
	switch cfg.PoolMode {
	case PoolNone:
		pool = newNullPool(drv, m)
	default:
		pool = newQueuePool(drv, cfg.PoolSize, m)
	}
	registerIdleGauge(name, pool)

	Logger.Infof("engine %q created (scheme=%s, pool=%s)", name, cfg.Scheme, cfg.PoolMode)

	return &Engine{
		name: name,
		cfg:  cfg,
		drv:  drv,
		pool: pool,
	}
}

// Name returns the engine's instance name (used in metric labels and logs)
func (e *Engine) Name() string {
	return e.name
}

// Driver exposes the underlying driver backend, e.g. for snapshot
// operations. Going through the driver directly bypasses the portal; callers
// must not do so while the engine is in use.
func (e *Engine) Driver() driver.Driver {
	return e.drv
}

// --------------------------------------------------------------------------
// Portal Binding
// --------------------------------------------------------------------------

// portalFor resolves the portal an operation must run on and enforces the
// engine's portal binding.
func (e *Engine) portalFor(ctx context.Context) (*bridge.Portal, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	p := bridge.FromContext(ctx)
	if p == nil {
		p = e.defaultPortal()
	}

	bound := e.bound.Load()
	if bound == nil {
		if e.bound.CompareAndSwap(nil, p) {
			Logger.Debugf("engine %q bound to portal %q", e.name, p.Name())
			bound = p
		} else {
			bound = e.bound.Load()
		}
	}

	if bound != p {
		return nil, fmt.Errorf(
			"engine %q created in portal %q is being used in portal %q; "+
				"call Dispose before moving an engine to a new scheduling context: %w",
			e.name, bound.Name(), p.Name(), bridge.ErrCrossPortal)
	}

	return p, nil
}

// defaultPortal lazily creates the engine-owned portal used when a context
// carries none.
func (e *Engine) defaultPortal() *bridge.Portal {
	if p := e.owned.Load(); p != nil {
		return p
	}

	e.ownedMu.Lock()
	defer e.ownedMu.Unlock()

	if p := e.owned.Load(); p != nil {
		return p
	}
	p := bridge.NewPortal(e.name)
	e.owned.Store(p)
	return p
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Connect acquires a connection from the pool, bound to the portal resolved
// from ctx. The connection must be returned with Close.
func (e *Engine) Connect(ctx context.Context) (*Conn, error) {
	portal, err := e.portalFor(ctx)
	if err != nil {
		return nil, err
	}

	raw, generation, err := e.pool.acquire()
	if err != nil {
		return nil, err
	}

	return &Conn{
		eng:        e,
		raw:        raw,
		generation: generation,
		portal:     portal,
	}, nil
}

// Begin acquires a connection and opens a transaction on it. Closing the
// returned connection rolls the transaction back if it was not committed.
func (e *Engine) Begin(ctx context.Context) (*Conn, error) {
	conn, err := e.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Begin(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// RunSync acquires a connection, runs fn on the engine's portal with a
// synchronous view of it, and releases the connection again. This is the
// escape hatch for code written against the blocking driver API.
func (e *Engine) RunSync(ctx context.Context, fn func(*bridge.SyncConn) error) error {
	conn, err := e.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.RunSync(ctx, fn)
}

// GetInfo reports backend metadata through the portal
func (e *Engine) GetInfo(ctx context.Context) (driver.DatabaseInfo, error) {
	portal, err := e.portalFor(ctx)
	if err != nil {
		return driver.DatabaseInfo{}, err
	}

	var info driver.DatabaseInfo
	err = portal.Submit(ctx, func() error {
		var err error
		info, err = e.drv.GetInfo()
		return err
	})
	return info, err
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Dispose closes all idle pooled connections and clears the portal binding.
// Connections checked out at the time of the call are closed when released
// instead of returning to the pool, so no connection of the old scheduling
// context survives.
//
// The engine itself stays usable: the next operation binds it to a fresh
// portal. Dispose is how an engine is handed from one scheduling context to
// another.
func (e *Engine) Dispose() error {
	err := e.pool.dispose()

	if p := e.owned.Swap(nil); p != nil {
		p.Close()
	}
	e.bound.Store(nil)

	Logger.Infof("engine %q disposed", e.name)
	return err
}

// Close disposes the engine and shuts down the driver backend. The engine
// cannot be used afterwards.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := e.Dispose()
	if cErr := e.drv.Close(); cErr != nil && err == nil {
		err = cErr
	}

	Logger.Infof("engine %q closed", e.name)
	return err
}
