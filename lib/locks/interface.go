package locks

import (
	"time"

	"github.com/syndb/syndb/lib/driver"
)

// Conn is the subset of connection operations the lock manager needs. It is
// satisfied by driver.Conn as well as by *bridge.SyncConn, so locks can be
// taken both directly on a driver and from inside a portal run.
type Conn interface {
	InsertIfAbsent(table string, pk uint64, data []byte) (inserted bool, err error)
	Fetch(table string, pk uint64) (row driver.Row, loaded bool, err error)
	Update(table string, pk uint64, data []byte) (err error)
	Delete(table string, pk uint64) (err error)
}

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock acquires a lock for the given name with an optional TTL
	// (0 = no expiry). It returns a boolean indicating whether the lock was
	// acquired, an owner ID, and an error if any.
	AcquireLock(name string, ttl time.Duration) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given name.
	// It returns a boolean indicating whether the lock was released, and an
	// error if any. The method also returns true if the lock did not exist.
	ReleaseLock(name string, ownerID []byte) (ok bool, err error)
}
