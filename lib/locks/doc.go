// Package locks implements a locking mechanism on top of databases that
// implement the driver.Driver interface. It provides a simple yet robust way
// to coordinate access to shared rows, e.g. for the ForUpdate refresh mode
// of the ORM layer.
//
// The lock manager only ever stores state in the reserved "__locks" table of
// the provided database and has no other internal state. It is therefore
// safe to create multiple managers on the same database; as long as the same
// database is used every time, all locks work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lock expiration through configurable wall-clock TTLs
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic conditional operations of
//	the underlying driver. Specifically:
//
//	- Lock Acquisition: Attempts to create a row using InsertIfAbsent, which
//	  guarantees that only one requester can successfully create it. The row
//	  payload contains a randomly generated 256-bit owner ID identifying the
//	  lock holder, the expiry timestamp, and the lock name.
//
//	- Lock Verification: Every write attempt is followed by a Fetch to
//	  confirm the lock was acquired by checking that the stored owner ID
//	  matches. This read-after-write verification is also what resolves
//	  races between concurrent stealers of an expired lock: all of them may
//	  overwrite the row, but only the requester whose owner ID survives
//	  reports the lock as acquired.
//
//	- Timeouts: Locks can carry an optional TTL that marks them as stealable
//	  after the given wall-clock duration, preventing deadlocks if a client
//	  crashes. Expiry is evaluated lazily at acquisition time; no background
//	  reaper is needed.
//
//	- Safe Release: ReleaseLock verifies that the requester is the
//	  legitimate owner by comparing owner IDs before deleting the row.
//
// Naming:
//
//	Lock names are mapped onto the uint64 primary-key space with a seeded
//	FNV-1a hash. The seed is a fixed constant so that all processes sharing
//	a database agree on the mapping. The lock name is stored in the row
//	payload for diagnostics; a hash collision between two names makes them
//	contend for the same lock, which is safe but unnecessary.
//
// Thread Safety:
//
//	The manager is exactly as thread-safe as the driver.Conn it wraps, which
//	is to say not at all. Callers that share a manager across goroutines
//	must serialize access, typically by routing operations through a bridge
//	portal (lib/bridge).
//
// Performance Impact:
//
//	Lock operations require 2-4 driver operations each:
//	- AcquireLock: one InsertIfAbsent, a verification Fetch, plus a Fetch
//	  and an overwrite when contending for an expired lock
//	- ReleaseLock: one Fetch followed by a conditional Delete
package locks
