// Package driver provides a standardized interface for synchronous row-store
// database implementations. It defines the Driver and Conn interfaces that
// allow consistent interaction with various backends while abstracting
// implementation details.
//
// The package focuses on:
//   - A unified interface for row operations keyed by uint64 primary keys
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - Driver Interface: A handle on one database. It hands out connections
//     (Open), advertises capabilities (SupportsFeature), reports metadata
//     (GetInfo) and provides persistence operations (Save, Load).
//
//   - Conn Interface: A single synchronous connection carrying the row
//     operations (Insert, InsertIfAbsent, Update, Delete, Fetch, Scan) and
//     the transaction operations (Begin, Commit, Rollback).
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method. This
//     allows clients to discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string
//     constants for different backends (currently "memtable" and "remote").
//
//   - Error Type: The Error type carries a RetCode next to the message so
//     callers can branch on the failure class (conflict, not found,
//     unsupported operation) instead of matching error strings.
//
// Note on Concurrency:
//
// A Driver is safe for concurrent use, a Conn is not. Every Conn method
// blocks until the operation completes and none of them takes a context.
// Serializing access to a Conn is the job of the layers above: the bridge
// portal (lib/bridge) runs all operations of a connection on one dedicated
// goroutine, which is what makes the blocking interface safe to expose to
// concurrent callers.
//
// Note on Versions:
//
// Every committed write is assigned a commit version from a counter that is
// monotonically increasing per database. All rows written by one transaction
// share a single commit version; autocommitted writes each consume their own.
// Fetch and Scan report the version a row was last written under, which the
// ORM layer (lib/orm) uses to detect stale in-memory state after a commit.
package driver
