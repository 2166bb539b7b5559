package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/syndb/syndb/lib/bridge"
	"github.com/syndb/syndb/lib/driver"
)

// Conn is the asynchronous face of one pooled driver connection. Every
// operation takes a context and is executed on the portal the connection was
// acquired under; the caller never touches the blocking driver API directly.
//
// A Conn is bound to its portal for its whole checkout: using it with a
// context that carries a different portal fails with bridge.ErrCrossPortal.
// Close returns the underlying connection to the engine's pool.
type Conn struct {
	eng        *Engine
	raw        driver.Conn
	generation uint64
	portal     *bridge.Portal
	released   atomic.Bool
}

// portalFor validates the connection state and the portal carried by ctx
func (c *Conn) portalFor(ctx context.Context) (*bridge.Portal, error) {
	if c.released.Load() {
		return nil, fmt.Errorf("engine: connection is closed")
	}

	if p := bridge.FromContext(ctx); p != nil && p != c.portal {
		return nil, fmt.Errorf(
			"connection acquired in portal %q is being used in portal %q: %w",
			c.portal.Name(), p.Name(), bridge.ErrCrossPortal)
	}

	return c.portal, nil
}

// submit runs one driver operation on the connection's portal
func (c *Conn) submit(ctx context.Context, fn func() error) error {
	portal, err := c.portalFor(ctx)
	if err != nil {
		return err
	}
	return portal.Submit(ctx, fn)
}

// --------------------------------------------------------------------------
// Row Operations
// --------------------------------------------------------------------------

func (c *Conn) Insert(ctx context.Context, table string, pk uint64, data []byte) error {
	return c.submit(ctx, func() error {
		return c.raw.Insert(table, pk, data)
	})
}

func (c *Conn) InsertIfAbsent(ctx context.Context, table string, pk uint64, data []byte) (bool, error) {
	var inserted bool
	err := c.submit(ctx, func() error {
		var err error
		inserted, err = c.raw.InsertIfAbsent(table, pk, data)
		return err
	})
	return inserted, err
}

func (c *Conn) Update(ctx context.Context, table string, pk uint64, data []byte) error {
	return c.submit(ctx, func() error {
		return c.raw.Update(table, pk, data)
	})
}

func (c *Conn) Delete(ctx context.Context, table string, pk uint64) error {
	return c.submit(ctx, func() error {
		return c.raw.Delete(table, pk)
	})
}

func (c *Conn) Fetch(ctx context.Context, table string, pk uint64) (driver.Row, bool, error) {
	var (
		row    driver.Row
		loaded bool
	)
	err := c.submit(ctx, func() error {
		var err error
		row, loaded, err = c.raw.Fetch(table, pk)
		return err
	})
	return row, loaded, err
}

func (c *Conn) Scan(ctx context.Context, table string, fn func(row driver.Row) bool) error {
	return c.submit(ctx, func() error {
		return c.raw.Scan(table, fn)
	})
}

// --------------------------------------------------------------------------
// Transaction Operations
// --------------------------------------------------------------------------

func (c *Conn) Begin(ctx context.Context) error {
	return c.submit(ctx, func() error {
		return c.raw.Begin()
	})
}

func (c *Conn) Commit(ctx context.Context) error {
	return c.submit(ctx, func() error {
		return c.raw.Commit()
	})
}

func (c *Conn) Rollback(ctx context.Context) error {
	return c.submit(ctx, func() error {
		return c.raw.Rollback()
	})
}

// --------------------------------------------------------------------------
// Synchronous Escape Hatch
// --------------------------------------------------------------------------

// RunSync executes fn on the connection's portal with a synchronous view of
// the underlying driver connection. See bridge.Portal.RunSync.
func (c *Conn) RunSync(ctx context.Context, fn func(*bridge.SyncConn) error) error {
	portal, err := c.portalFor(ctx)
	if err != nil {
		return err
	}
	return portal.RunSync(ctx, c.raw, fn)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close returns the connection to the engine's pool. An open transaction is
// rolled back first so the next checkout starts clean. Close is idempotent.
func (c *Conn) Close() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}

	// The rollback runs on the portal; a failed rollback (e.g. no open
	// transaction) is expected and ignored.
	_ = c.portal.Submit(context.Background(), func() error {
		return c.raw.Rollback()
	})

	c.eng.pool.release(c.raw, c.generation)
}
