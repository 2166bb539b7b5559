// Package bridge implements the execution bridge between a blocking,
// single-threaded database API and concurrent callers. It is the mechanism
// that lets synchronous driver code run safely underneath an asynchronous
// facade.
//
// The package focuses on:
//   - Strict serialization of all database work of one scheduling context
//   - Cooperative hand-off between concurrent callers and one service
//     goroutine, preserving submission order
//   - Hard failures instead of silent misuse when the synchronous API
//     escapes its scheduling context
//
// Key Components:
//
//   - Portal: One scheduling context, backed by a single service goroutine.
//     All work submitted to a portal runs on that goroutine, strictly one
//     task at a time. Resources (engines, their connections) bind to a
//     portal and refuse use from another one, so a blocking connection can
//     never see two operations at once.
//
//   - Submit: Hands a function to the service goroutine and waits for its
//     result. If the caller's context is cancelled before the portal accepts
//     the task, the task never runs. If it is cancelled while the task runs,
//     the task completes on the service goroutine (an individual operation
//     cannot be interrupted) but the caller detaches and gets the context
//     error.
//
//   - RunSync / SyncConn: RunSync executes a user function on the service
//     goroutine with a SyncConn, the synchronous view of a driver
//     connection. Inside that function, blocking calls run inline with no
//     per-operation hand-off. The SyncConn is disarmed when the function
//     returns; any call on a retained SyncConn fails with ErrNoBridge
//     rather than performing implicit I/O from an arbitrary goroutine.
//
//   - Context Plumbing: WithPortal and FromContext carry the current portal
//     through a context.Context, the way request-scoped schedulers are
//     usually threaded through Go call chains. The engine layer uses this to
//     bind resources to the portal of their first use and to diagnose
//     cross-portal reuse (ErrCrossPortal).
//
// Error Model:
//
//	All misuse is surfaced as one of three sentinel errors: ErrNoBridge
//	(synchronous call outside a portal run), ErrPortalClosed (work submitted
//	to or interrupted by a closed portal) and ErrCrossPortal (resource bound
//	to a different portal). Panics in submitted tasks are caught, logged and
//	returned as *PanicError so a misbehaving task cannot kill the service
//	goroutine.
package bridge
