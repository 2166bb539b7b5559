package locks

import (
	"bytes"
	"time"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/util"
)

type lockMgrImpl struct {
	conn Conn
}

// NewLockManager creates a lock manager on top of a driver connection.
//
// The manager keeps no state of its own; all state lives in the reserved
// lock table of the underlying database. It is therefore safe to create any
// number of managers on the same database. The manager is exactly as safe
// for concurrent use as the connection it wraps, so callers that share a
// manager across goroutines must route it through a bridge portal.
func NewLockManager(conn Conn) ILockManager {
	return &lockMgrImpl{
		conn: conn,
	}
}

// pkFor maps a lock name onto the primary-key space with a fixed seed
func pkFor(name string) uint64 {
	return util.HashString(name, lockSeed)
}

func (lm *lockMgrImpl) AcquireLock(name string, ttl time.Duration) (bool, []byte, error) {
	// Generate owner ID (256 bit random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	now := time.Now()
	record := lockRecord{OwnerID: ownerID, Name: name}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl).UnixNano()
	}

	pk := pkFor(name)
	data := encodeRecord(record)

	// Try to acquire the lock (atomic insert-if-absent)
	inserted, err := lm.conn.InsertIfAbsent(LocksTable, pk, data)
	if err != nil {
		return false, nil, err
	}

	if !inserted {
		// A lock row exists. If its TTL has passed, the holder is presumed
		// dead and the row may be overwritten.
		row, loaded, err := lm.conn.Fetch(LocksTable, pk)
		if err != nil {
			return false, nil, err
		}

		if loaded {
			existing, err := decodeRecord(row.Data)
			if err != nil {
				return false, nil, err
			}
			if !existing.expired(now) {
				return false, nil, nil
			}
			// Overwrite the expired row. Concurrent stealers may race here;
			// the verification read below decides the winner. A NotFound
			// error means the holder released in the meantime, which the
			// verification read handles as well.
			if err := lm.conn.Update(LocksTable, pk, data); err != nil {
				if dErr, ok := err.(*driver.Error); !ok || dErr.Code != driver.RetCNotFound {
					return false, nil, err
				}
				_, _ = lm.conn.InsertIfAbsent(LocksTable, pk, data)
			}
		} else {
			// Released between InsertIfAbsent and Fetch, try once more
			if _, err := lm.conn.InsertIfAbsent(LocksTable, pk, data); err != nil {
				return false, nil, err
			}
		}
	}

	// Verify the lock was acquired BY US: after racing writers settle, only
	// one owner ID is stored
	row, loaded, err := lm.conn.Fetch(LocksTable, pk)
	if err != nil {
		return false, nil, err
	}
	if loaded {
		stored, err := decodeRecord(row.Data)
		if err != nil {
			return false, nil, err
		}
		if bytes.Equal(stored.OwnerID, ownerID) {
			return true, ownerID, nil
		}
	}

	// Lock was acquired by someone else in the meantime
	return false, nil, nil
}

func (lm *lockMgrImpl) ReleaseLock(name string, ownerID []byte) (bool, error) {
	pk := pkFor(name)

	// Check if the lock exists
	row, loaded, err := lm.conn.Fetch(LocksTable, pk)
	if err != nil {
		return false, err
	}
	if !loaded {
		return true, nil
	}

	record, err := decodeRecord(row.Data)
	if err != nil {
		return false, err
	}

	// Check if the lock is owned by us
	if !bytes.Equal(record.OwnerID, ownerID) {
		return false, nil
	}

	// Release the lock
	err = lm.conn.Delete(LocksTable, pk)
	return err == nil, err
}
