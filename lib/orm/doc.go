// Package orm implements a small unit-of-work object mapper on top of the
// engine layer. Its defining feature is the expiration guard: after a
// commit, in-memory objects are stale by default, and everything that would
// silently paper over that staleness with implicit I/O is turned into an
// explicit, diagnosable error instead.
//
// Key Components:
//
//   - Mapper: Describes how one Go struct maps onto a table: table name,
//     primary key access, payload codec (JSON by default) and an optional
//     relations wiring function that creates the entity's Collection
//     handles. Mappers are immutable and shared.
//
//   - SessionFactory / Session: A Session is one unit of work. It tracks
//     every entity loaded or added through it (identity map: one pointer per
//     row), detects modifications by comparing encoded payloads against the
//     load-time snapshot, and writes all changes out at Commit, atomically
//     where the backend supports transactions. Sessions are not safe for
//     concurrent use.
//
//   - Collection: A relation handle living as a field on the parent entity,
//     created in the mapper's wiring function. Its load strategy decides
//     when I/O happens: LoadLazy on first access, LoadSelectIn eagerly at
//     parent materialization, LoadRaise never implicitly (access fails with
//     ImplicitIOError until Populate is called), LoadNone never at all.
//     Relation fields must be excluded from the payload codec (tag them
//     `json:"-"` with the default codec).
//
// The Expiration Guard:
//
//	With ExpireOnCommit (the default), Commit marks every tracked entity
//	expired. From that moment:
//
//	  - Get reloads the entity from the database before returning it, so
//	    the caller always sees committed state at the cost of explicit I/O.
//	  - Collection access on an expired parent fails with StaleError rather
//	    than serving cached children or loading them behind the caller's
//	    back.
//	  - If the reload finds the row gone, that is a StaleError too, naming
//	    the row that vanished.
//
//	Sessions created with ExpireOnCommit disabled keep their entities live
//	across commits and accept the risk of acting on outdated state.
//
// Pessimistic Refresh:
//
//	Refresh reloads a tracked entity on demand. With RefreshOptions.ForUpdate
//	it first takes a row lock through lib/locks; the lock is held until the
//	unit of work ends (Commit, Rollback or Close), serializing concurrent
//	read-modify-write cycles on the same row. A lock held elsewhere fails
//	the refresh with ErrLockNotAcquired immediately; there is no queueing.
//
// All database access of a session flows through its engine connection and
// therefore through the engine's bridge portal; the ORM never performs I/O
// on the caller's goroutine.
package orm
