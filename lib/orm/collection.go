package orm

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Load Strategies
// --------------------------------------------------------------------------

// LoadStrategy controls when a Collection performs its database I/O
type LoadStrategy int

const (
	// LoadLazy loads the collection on first access (the default)
	LoadLazy LoadStrategy = iota
	// LoadSelectIn loads the collection eagerly when its parent entity is
	// materialized, so later access never does I/O
	LoadSelectIn
	// LoadRaise forbids implicit loading entirely: access fails with
	// ImplicitIOError unless the collection was populated explicitly
	LoadRaise
	// LoadNone never loads: access yields an empty collection
	LoadNone
)

func (s LoadStrategy) String() string {
	switch s {
	case LoadLazy:
		return "Lazy"
	case LoadSelectIn:
		return "SelectIn"
	case LoadRaise:
		return "Raise"
	case LoadNone:
		return "None"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// Collection is a relation handle: the set of child entities of one parent,
// selected by a filter over the child table. It is created in a mapper's
// relations wiring function and registered with the parent's session state,
// which is how the expiration guard reaches it: when a commit expires the
// parent, the collection's cache is dropped with it, and access on a stale
// parent fails with StaleError instead of silently returning outdated
// children.
type Collection[T any] struct {
	session  *Session
	mapper   *Mapper[T]
	name     string
	filter   func(*T) bool
	strategy LoadStrategy

	parentTable string
	parentPK    uint64
	parent      interface{}

	loaded bool
	items  []*T
}

// NewCollection creates a relation handle for parent and registers it with
// the parent's session state.
//
// It must only be called from a mapper's relations wiring function
// (WithRelations); that is the only point where the parent is guaranteed to
// be freshly registered with the session.
func NewCollection[T any](s *Session, parent interface{}, name string, m *Mapper[T], filter func(*T) bool, strategy LoadStrategy) *Collection[T] {
	st, tracked := s.byPtr[parent]
	if !tracked {
		panic(fmt.Sprintf("orm: NewCollection for %q called outside relations wiring", name))
	}

	c := &Collection[T]{
		session:     s,
		mapper:      m,
		name:        name,
		filter:      filter,
		strategy:    strategy,
		parentTable: st.table,
		parentPK:    st.pk,
		parent:      parent,
	}

	st.collections = append(st.collections, c)
	return c
}

// --------------------------------------------------------------------------
// Access
// --------------------------------------------------------------------------

// All returns the collection's entities, loading them if the strategy
// permits. On a stale or detached parent it fails with StaleError; with the
// raise strategy an unpopulated collection fails with ImplicitIOError.
func (c *Collection[T]) All(ctx context.Context) ([]*T, error) {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()

	if err := c.guardParent(); err != nil {
		return nil, err
	}

	if c.loaded {
		return c.items, nil
	}

	switch c.strategy {
	case LoadNone:
		return nil, nil
	case LoadRaise:
		return nil, &ImplicitIOError{Table: c.parentTable, PK: c.parentPK, Relation: c.name}
	default:
		if err := c.loadLocked(ctx); err != nil {
			return nil, err
		}
		return c.items, nil
	}
}

// Populate loads the collection explicitly, regardless of strategy. This is
// the sanctioned way to fill a raise-strategy collection.
func (c *Collection[T]) Populate(ctx context.Context) error {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()

	if err := c.guardParent(); err != nil {
		return err
	}
	return c.loadLocked(ctx)
}

// Loaded reports whether the collection currently holds loaded items
func (c *Collection[T]) Loaded() bool {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	return c.loaded
}

// guardParent rejects access through a stale or detached parent.
// Caller holds the session mutex.
func (c *Collection[T]) guardParent() error {
	st, tracked := c.session.byPtr[c.parent]
	if !tracked {
		return &StaleError{
			Table:  c.parentTable,
			PK:     c.parentPK,
			Reason: "parent entity is detached from the session",
		}
	}
	if st.expired {
		return &StaleError{
			Table:  c.parentTable,
			PK:     c.parentPK,
			Reason: "parent entity expired by commit; reload it before touching its relations",
		}
	}
	return nil
}

// loadLocked scans the child table through the session.
// Caller holds the session mutex.
func (c *Collection[T]) loadLocked(ctx context.Context) error {
	items, err := allLocked(ctx, c.session, c.mapper, c.filter)
	if err != nil {
		return err
	}
	c.items = items
	c.loaded = true
	return nil
}

// --------------------------------------------------------------------------
// collectionHandle (session-side view)
// --------------------------------------------------------------------------

func (c *Collection[T]) reset() {
	c.loaded = false
	c.items = nil
}

func (c *Collection[T]) eagerLoad(ctx context.Context) error {
	if c.strategy != LoadSelectIn || c.loaded {
		return nil
	}
	return c.loadLocked(ctx)
}
