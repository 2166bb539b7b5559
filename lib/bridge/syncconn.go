package bridge

import (
	"context"
	"sync/atomic"

	"github.com/syndb/syndb/lib/driver"
)

// SyncConn is the synchronous face of a driver connection, valid only inside
// a portal run. It is handed to the function passed to RunSync and is
// disarmed the moment that function returns: every later call fails with
// ErrNoBridge instead of silently doing blocking I/O on the wrong goroutine.
type SyncConn struct {
	conn   driver.Conn
	active atomic.Bool
}

// RunSync executes fn on the portal's service goroutine with a synchronous
// view of conn. Inside fn the full blocking driver API is available and runs
// inline, one call after another, without any per-operation submission
// overhead.
//
// The SyncConn must not be retained: it is only valid until fn returns.
// Cancellation follows Portal.Submit semantics.
func (p *Portal) RunSync(ctx context.Context, conn driver.Conn, fn func(*SyncConn) error) error {
	return p.Submit(ctx, func() error {
		sc := &SyncConn{conn: conn}
		sc.active.Store(true)
		defer sc.active.Store(false)
		return fn(sc)
	})
}

// guard rejects calls outside the portal run the SyncConn was created for
func (sc *SyncConn) guard() error {
	if !sc.active.Load() {
		return ErrNoBridge
	}
	return nil
}

// --------------------------------------------------------------------------
// driver.Conn surface (docu see driver.Conn)
// --------------------------------------------------------------------------

func (sc *SyncConn) Insert(table string, pk uint64, data []byte) error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Insert(table, pk, data)
}

func (sc *SyncConn) InsertIfAbsent(table string, pk uint64, data []byte) (bool, error) {
	if err := sc.guard(); err != nil {
		return false, err
	}
	return sc.conn.InsertIfAbsent(table, pk, data)
}

func (sc *SyncConn) Update(table string, pk uint64, data []byte) error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Update(table, pk, data)
}

func (sc *SyncConn) Delete(table string, pk uint64) error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Delete(table, pk)
}

func (sc *SyncConn) Fetch(table string, pk uint64) (driver.Row, bool, error) {
	if err := sc.guard(); err != nil {
		return driver.Row{}, false, err
	}
	return sc.conn.Fetch(table, pk)
}

func (sc *SyncConn) Scan(table string, fn func(row driver.Row) bool) error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Scan(table, fn)
}

func (sc *SyncConn) Begin() error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Begin()
}

func (sc *SyncConn) Commit() error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Commit()
}

func (sc *SyncConn) Rollback() error {
	if err := sc.guard(); err != nil {
		return err
	}
	return sc.conn.Rollback()
}
