package bridge

import "errors"

var (
	// ErrNoBridge is returned when a synchronous connection method is called
	// outside the portal-run function it was handed to. The blocking driver
	// API is only usable while the portal's service goroutine is executing
	// the caller's function.
	ErrNoBridge = errors.New("bridge: synchronous call outside a portal run")

	// ErrPortalClosed is returned for work submitted to a portal that has
	// been closed, or whose close interrupted the submission.
	ErrPortalClosed = errors.New("bridge: portal is closed")

	// ErrCrossPortal is returned when a resource that is bound to one portal
	// is used from another. Resources such as engines bind to the portal of
	// their first use and must be disposed before they can be reused
	// elsewhere.
	ErrCrossPortal = errors.New("bridge: resource is bound to another portal")
)
