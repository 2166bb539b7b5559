package engine

import (
	"sync"

	"github.com/syndb/syndb/lib/driver"
)

// --------------------------------------------------------------------------
// Pool Interface
// --------------------------------------------------------------------------

// connPool manages the raw driver connections of one engine.
//
// acquire returns a connection together with the pool generation it belongs
// to. The generation is handed back on release: connections from an older
// generation (checked out across a dispose) are closed instead of reused, so
// a disposed engine never resurrects old connections.
type connPool interface {
	acquire() (conn driver.Conn, generation uint64, err error)
	release(conn driver.Conn, generation uint64)
	// dispose closes all idle connections and starts a new generation
	dispose() error
	// idle reports the number of currently retained connections
	idle() int
}

// --------------------------------------------------------------------------
// QueuePool
// --------------------------------------------------------------------------

// queuePool retains up to size released connections for reuse. There is no
// hard cap on checked-out connections; the pool only bounds what it keeps.
type queuePool struct {
	drv  driver.Driver
	size int

	mu         sync.Mutex
	conns      []driver.Conn
	generation uint64
	metrics    *poolMetrics
}

func newQueuePool(drv driver.Driver, size int, m *poolMetrics) connPool {
	if size < 1 {
		size = defaultPoolSize
	}
	return &queuePool{
		drv:     drv,
		size:    size,
		metrics: m,
	}
}

func (p *queuePool) acquire() (driver.Conn, uint64, error) {
	p.mu.Lock()

	if n := len(p.conns); n > 0 {
		conn := p.conns[n-1]
		p.conns = p.conns[:n-1]
		generation := p.generation
		p.mu.Unlock()

		p.metrics.acquired.Inc()
		return conn, generation, nil
	}

	generation := p.generation
	p.mu.Unlock()

	conn, err := p.drv.Open()
	if err != nil {
		return nil, 0, err
	}

	p.metrics.acquired.Inc()
	p.metrics.opened.Inc()
	return conn, generation, nil
}

func (p *queuePool) release(conn driver.Conn, generation uint64) {
	p.metrics.released.Inc()

	p.mu.Lock()
	if generation == p.generation && len(p.conns) < p.size {
		p.conns = append(p.conns, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// stale generation or pool full
	_ = conn.Close()
	p.metrics.closed.Inc()
}

func (p *queuePool) dispose() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.generation++
	p.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.metrics.closed.Inc()
	}
	return firstErr
}

func (p *queuePool) idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// --------------------------------------------------------------------------
// NullPool
// --------------------------------------------------------------------------

// nullPool performs no pooling at all: every acquisition opens a fresh
// connection and every release closes it.
type nullPool struct {
	drv     driver.Driver
	metrics *poolMetrics
}

func newNullPool(drv driver.Driver, m *poolMetrics) connPool {
	return &nullPool{drv: drv, metrics: m}
}

func (p *nullPool) acquire() (driver.Conn, uint64, error) {
	conn, err := p.drv.Open()
	if err != nil {
		return nil, 0, err
	}
	p.metrics.acquired.Inc()
	p.metrics.opened.Inc()
	return conn, 0, nil
}

func (p *nullPool) release(conn driver.Conn, _ uint64) {
	p.metrics.released.Inc()
	_ = conn.Close()
	p.metrics.closed.Inc()
}

func (p *nullPool) dispose() error {
	return nil
}

func (p *nullPool) idle() int {
	return 0
}
