// Package engine provides the asynchronous entry point to a database. An
// Engine pairs a driver backend with a connection pool and a binding to the
// scheduling context (bridge portal) on which all of its blocking work runs.
//
// The package focuses on:
//   - Context-first operations: every call takes a context.Context and is
//     executed on a portal, never on the caller's goroutine
//   - Connection pooling with a queueing pool (default) and a no-pooling
//     mode for callers that need fresh connections per use
//   - Scheduling-context hygiene: engines bind to the portal of their first
//     use, reject cross-portal reuse, and are released with Dispose
//   - Pool observability through VictoriaMetrics counters and gauges
//
// Key Components:
//
//   - Engine: Created from a DSN with Connect (e.g. "memtable://?shards=8",
//     "tcp://host:8080?db=100&pool=none") or from an existing driver with
//     New. Backends register themselves by DSN scheme the way database/sql
//     drivers do; remote schemes are registered by importing rpc/client.
//
//   - Conn: An acquired pooled connection with the asynchronous operation
//     surface (Insert, Fetch, Scan, Begin/Commit/Rollback, ...). Operations
//     are submitted to the portal one at a time, so the non-thread-safe
//     driver connection underneath is never used concurrently.
//
//   - RunSync: The synchronous escape hatch. It runs a user function on the
//     portal's service goroutine with a bridge.SyncConn, giving blocking
//     code inline access to the connection without per-operation hand-off.
//
// Portal Binding and Dispose:
//
//	The first operation binds an engine to a portal: the one carried by the
//	operation's context, or a lazily created engine-owned portal when the
//	context carries none. From then on, use from any other portal fails
//	with bridge.ErrCrossPortal. This turns accidental sharing of an engine
//	across scheduling contexts into an immediate, diagnosable error instead
//	of corrupting the serialized connection underneath.
//
//	Dispose undoes the binding: it closes all idle pooled connections,
//	closes the engine-owned portal if one was created, and bumps the pool
//	generation so checked-out connections are closed on release rather than
//	reused. The engine itself remains usable and binds afresh on next use,
//	which is the supported way to move an engine into a new scheduling
//	context. Close additionally shuts down the driver backend for good.
package engine
