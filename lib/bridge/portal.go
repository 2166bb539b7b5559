package bridge

import (
	"context"
	"sync/atomic"

	"github.com/syndb/syndb/lib/logging"
)

var Logger = logging.GetLogger("bridge")

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// task is one unit of work handed to the portal's service goroutine
type task struct {
	fn    func() error
	errCh chan error // Buffered; receives the result exactly once
}

// Portal is one scheduling context. It owns a single service goroutine on
// which all submitted work runs strictly one task at a time, in submission
// order. This is what makes the blocking driver API safe to expose to many
// concurrent callers: the portal guarantees that no two operations of the
// resources bound to it ever run at the same time.
//
// A Portal is safe for concurrent use. Closing it is idempotent.
type Portal struct {
	name     string
	submitCh chan *task
	stopCh   chan struct{}
	doneCh   chan struct{} // Closed when the service goroutine has exited
	closed   atomic.Bool
}

// NewPortal creates a portal and starts its service goroutine.
func NewPortal(name string) *Portal {
	p := &Portal{
		name:     name,
		submitCh: make(chan *task),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go p.serve()

	Logger.Debugf("portal %q started", name)
	return p
}

// Name returns the portal's name (used for diagnostics and cross-portal
// error messages).
func (p *Portal) Name() string {
	return p.name
}

// --------------------------------------------------------------------------
// Service Loop
// --------------------------------------------------------------------------

// serve is the portal's service goroutine. It executes tasks one at a time
// until the portal is closed, then fails all submissions that raced with the
// close.
func (p *Portal) serve() {
	defer close(p.doneCh)

	for {
		select {
		case t := <-p.submitCh:
			t.errCh <- p.run(t.fn)
		case <-p.stopCh:
			// Drain submissions that were accepted concurrently with the
			// close so no submitter is left waiting.
			for {
				select {
				case t := <-p.submitCh:
					t.errCh <- ErrPortalClosed
				default:
					return
				}
			}
		}
	}
}

// run executes one task, converting a panic in user code into an error so
// the service goroutine survives.
func (p *Portal) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("portal %q: panic in submitted task: %v", p.name, r)
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Submit runs fn on the portal's service goroutine and returns its error.
//
// Cancellation semantics: if ctx is done before the portal accepts the task,
// the task never runs and the context error is returned. If ctx is done
// while the task is running, the task still runs to completion on the
// service goroutine (it cannot be interrupted mid-operation), but Submit
// stops waiting and returns the context error; the task's result is
// discarded.
func (p *Portal) Submit(ctx context.Context, fn func() error) error {
	if p.closed.Load() {
		return ErrPortalClosed
	}

	t := &task{
		fn:    fn,
		errCh: make(chan error, 1),
	}

	select {
	case p.submitCh <- t:
	case <-p.stopCh:
		return ErrPortalClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.errCh:
		return err
	case <-ctx.Done():
		// Detach: the task keeps running on the service goroutine and its
		// result goes to the buffered channel, which is then dropped.
		return ctx.Err()
	}
}

// Close shuts the portal down. Work already accepted finishes; submissions
// racing with the close fail with ErrPortalClosed. Close blocks until the
// service goroutine has exited.
func (p *Portal) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		<-p.doneCh
		return
	}

	close(p.stopCh)
	<-p.doneCh

	Logger.Debugf("portal %q closed", p.name)
}

// --------------------------------------------------------------------------
// Panic Propagation
// --------------------------------------------------------------------------

// PanicError wraps a panic raised by user code inside a portal task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "bridge: panic in portal task"
}

// --------------------------------------------------------------------------
// Context Plumbing
// --------------------------------------------------------------------------

type portalCtxKey struct{}

// WithPortal returns a context carrying the given portal. Resources such as
// engines read the portal out of the context to decide which scheduling
// context their operations run on.
func WithPortal(ctx context.Context, p *Portal) context.Context {
	return context.WithValue(ctx, portalCtxKey{}, p)
}

// FromContext returns the portal carried by ctx, or nil if there is none.
func FromContext(ctx context.Context) *Portal {
	p, _ := ctx.Value(portalCtxKey{}).(*Portal)
	return p
}
