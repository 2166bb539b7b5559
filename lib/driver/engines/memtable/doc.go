// Package memtable implements an in-memory row store with transaction
// support. It provides a complete implementation of the driver.Driver
// interface with a focus on thread safety and predictable commit semantics.
//
// The package focuses on:
//   - Optimized concurrent reads through per-table sharding and lock-free maps
//   - Atomic multi-row transactions with validate-then-apply commits
//   - Monotonic commit versioning for stale-state detection in upper layers
//   - Persistent storage with consistent snapshots and compact binary encoding
//   - Metrics and statistics for monitoring via GetInfo
//
// Key Components:
//
//   - memtableImpl: The central database structure implementing driver.Driver.
//     It manages the table registry, the commit mutex and the commit version
//     counter, and provides persistence via Save and Load.
//
//   - connImpl: A connection handle implementing driver.Conn. Connections are
//     cheap; they carry only a reference to the shared store plus the write
//     buffer of an open transaction. A connection must not be used
//     concurrently, serializing access is the job of the layers above (see
//     lib/bridge).
//
//   - Table and Shard: Each named table is partitioned into shards, one
//     xsync.MapOf per shard keyed directly by primary key. Since primary keys
//     are commonly small sequential integers, rows are distributed by pk
//     modulo shard count rather than by hashing.
//
// Internal Mechanisms:
//
//   - Commit Versioning: Every committed write is assigned a version from a
//     monotonically increasing counter. Autocommitted writes each consume one
//     version; all rows of one transaction share a single version. Versions
//     are what the ORM layer compares against to detect rows that changed
//     underneath an expired in-memory object.
//
//   - Commit Mutex: All writes, including autocommitted single operations,
//     run under one driver-wide mutex. This keeps version assignment atomic
//     with the application of the writes. Reads never take the mutex; they
//     rely on the per-entry atomicity of xsync.MapOf. A Scan running
//     concurrently with a commit may therefore observe some but not all rows
//     of that commit.
//
//   - Transactions: Begin switches the connection into buffering mode.
//     Writes are collected in order and validated at Commit against the
//     committed state (with an overlay for rows the transaction itself
//     touches, so delete-then-insert of one key validates). If validation
//     fails, nothing is applied and the transaction is rolled back. The
//     exception is InsertIfAbsent, which always applies immediately: it
//     exists for atomic check-and-set uses such as lock acquisition.
//
//   - Persistence Format: Snapshots use a compact binary format:
//     1. Magic number "SYNDBMT\x00" to identify the file format
//     2. Format version (currently 1)
//     3. Commit sequence counter
//     4. Table count, then per table: name, row count and the rows
//     (primary key, version, payload length, payload bytes)
//     Save holds the commit mutex, so snapshots are a consistent cut of the
//     committed state. Load replaces all tables and restores the commit
//     counter to at least the highest row version seen.
//
// The memtable package is designed to serve as the local backend for the
// engine and ORM layers, and as the storage behind the network server for
// remote access.
package memtable
