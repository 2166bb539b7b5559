package orm

import "context"

// --------------------------------------------------------------------------
// Entity State Tracking
// --------------------------------------------------------------------------

type entityStatus uint8

const (
	// statusPending marks an entity scheduled for insert at the next flush
	statusPending entityStatus = iota
	// statusPersistent marks an entity backed by a database row
	statusPersistent
	// statusDeleted marks an entity scheduled for delete at the next flush
	statusDeleted
)

func (s entityStatus) String() string {
	switch s {
	case statusPending:
		return "Pending"
	case statusPersistent:
		return "Persistent"
	case statusDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// identKey identifies one row in the session's identity map
type identKey struct {
	table string
	pk    uint64
}

// collectionHandle is the non-generic view the session has of an entity's
// Collection fields
type collectionHandle interface {
	// reset drops the loaded items so the next access reloads
	reset()
	// eagerLoad populates the collection if its strategy asks for eager
	// loading at materialization time
	eagerLoad(ctx context.Context) error
}

// entityState is the session-side bookkeeping for one tracked entity.
//
// The generic mapper is captured in the encode and reload closures at
// registration time, which keeps the session itself free of type parameters.
type entityState struct {
	entity interface{} // the tracked *T
	table  string
	pk     uint64

	status  entityStatus
	expired bool

	// snapshot is the encoded payload at load or last flush; dirty
	// detection compares against it
	snapshot []byte
	// version is the commit version of the row at load
	version uint64

	collections []collectionHandle

	encode func() ([]byte, error)
	reload func(ctx context.Context, s *Session) error
}

// expire marks the state stale and resets its collections
func (st *entityState) expire() {
	st.expired = true
	st.version = 0
	st.snapshot = nil
	for _, c := range st.collections {
		c.reset()
	}
}

// dirty reports whether the entity's encoded payload differs from its
// snapshot, returning the new payload when it does
func (st *entityState) dirty() (data []byte, isDirty bool, err error) {
	data, err = st.encode()
	if err != nil {
		return nil, false, err
	}
	if string(data) == string(st.snapshot) {
		return data, false, nil
	}
	return data, true, nil
}
