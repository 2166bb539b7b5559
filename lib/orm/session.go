package orm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndb/syndb/lib/bridge"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/engine"
	"github.com/syndb/syndb/lib/locks"
	"github.com/syndb/syndb/lib/logging"
)

var Logger = logging.GetLogger("orm")

// ErrLockNotAcquired is returned by a ForUpdate refresh when the row lock is
// held elsewhere.
var ErrLockNotAcquired = errors.New("orm: row lock not acquired")

// --------------------------------------------------------------------------
// Session Factory
// --------------------------------------------------------------------------

// SessionOptions configures the sessions a factory produces
type SessionOptions struct {
	// ExpireOnCommit controls whether Commit marks all tracked entities
	// stale, forcing the next access to reload current state. This is the
	// default; turning it off keeps entities usable after commit at the
	// price of potentially outdated in-memory state.
	ExpireOnCommit bool
}

// DefaultSessionOptions returns the default session options
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		ExpireOnCommit: true,
	}
}

// SessionFactory produces sessions bound to one engine, in the manner of a
// sessionmaker. The factory is safe for concurrent use; the sessions it
// produces are not.
type SessionFactory struct {
	eng  *engine.Engine
	opts SessionOptions
}

// NewSessionFactory creates a session factory on the given engine with the
// specified options (optional).
func NewSessionFactory(eng *engine.Engine, opts *SessionOptions) *SessionFactory {
	if opts == nil {
		opts = DefaultSessionOptions()
	}
	return &SessionFactory{
		eng:  eng,
		opts: *opts,
	}
}

// NewSession creates a fresh unit of work. The session acquires a pooled
// connection lazily on first use and holds it until Close.
func (f *SessionFactory) NewSession() *Session {
	return &Session{
		eng:      f.eng,
		opts:     f.opts,
		identity: make(map[identKey]*entityState),
		byPtr:    make(map[interface{}]*entityState),
	}
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// heldLock is a row lock taken by a ForUpdate refresh, released at the end
// of the unit of work
type heldLock struct {
	name    string
	ownerID []byte
}

// Session is one unit of work: it tracks entities loaded or added through
// it, detects modifications at commit time, and writes all changes out as
// one atomic commit (where the backend supports transactions).
//
// A Session must not be used from multiple goroutines at once. The mutex
// only protects against bookkeeping corruption on accidental misuse; it does
// not make concurrent use meaningful.
type Session struct {
	eng  *engine.Engine
	opts SessionOptions

	mu       sync.Mutex
	conn     *engine.Conn
	identity map[identKey]*entityState
	byPtr    map[interface{}]*entityState
	locks    []heldLock
	closed   bool
}

// connection lazily acquires the session's pooled connection
func (s *Session) connection(ctx context.Context) (*engine.Conn, error) {
	if s.closed {
		return nil, fmt.Errorf("orm: session is closed")
	}
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.eng.Connect(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

// --------------------------------------------------------------------------
// Generic Entity Operations
// --------------------------------------------------------------------------

// Add schedules an entity for insertion at the next flush. Entities with
// primary key 0 get a generated key assigned if the mapper allows it.
func Add[T any](s *Session, m *Mapper[T], entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("orm: session is closed")
	}
	if _, tracked := s.byPtr[entity]; tracked {
		return fmt.Errorf("orm: entity is already tracked")
	}

	pk := m.pk(entity)
	if pk == 0 {
		if m.setPK == nil {
			return fmt.Errorf("orm: entity for table %q has no primary key and the mapper cannot assign one", m.table)
		}
		pk = generatePK()
		m.setPK(entity, pk)
	}

	key := identKey{m.table, pk}
	if _, exists := s.identity[key]; exists {
		return fmt.Errorf("orm: row %d of table %q is already tracked", pk, m.table)
	}

	st := newState(s, m, entity, pk)
	st.status = statusPending
	s.identity[key] = st
	s.byPtr[entity] = st

	if m.wire != nil {
		m.wire(s, entity)
	}
	return nil
}

// AddAll begins tracking several new entities for insertion at the next
// flush. It stops at the first entity that cannot be added; entities added
// before the failure stay tracked.
func AddAll[T any](s *Session, m *Mapper[T], entities ...*T) error {
	for _, entity := range entities {
		if err := Add(s, m, entity); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the entity for a primary key. A tracked, current entity comes
// straight from the identity map without I/O; an expired one is reloaded
// first. A missing row yields (nil, nil).
func Get[T any](ctx context.Context, s *Session, m *Mapper[T], pk uint64) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.identity[identKey{m.table, pk}]; ok {
		if st.status == statusDeleted {
			return nil, nil
		}
		if st.expired {
			if err := st.reload(ctx, s); err != nil {
				return nil, err
			}
		}
		return st.entity.(*T), nil
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	row, loaded, err := conn.Fetch(ctx, m.table, pk)
	if err != nil {
		return nil, err
	}
	if !loaded {
		return nil, nil
	}

	return materialize(ctx, s, m, row)
}

// All returns every entity of the mapped table. Tracked current entities are
// reused from the identity map; everything else is materialized.
func All[T any](ctx context.Context, s *Session, m *Mapper[T]) ([]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return allLocked(ctx, s, m, nil)
}

// Select returns every entity of the mapped table for which filter returns
// true. The filter runs on materialized entities, so tracked current
// entities are reused from the identity map just like All.
func Select[T any](ctx context.Context, s *Session, m *Mapper[T], filter func(*T) bool) ([]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return allLocked(ctx, s, m, filter)
}

// allLocked is the scan-and-materialize core shared by All, Select and by
// collection loading. Caller holds s.mu. A non-nil filter limits the result
// to matching entities.
func allLocked[T any](ctx context.Context, s *Session, m *Mapper[T], filter func(*T) bool) ([]*T, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	var rows []driver.Row
	if err := conn.Scan(ctx, m.table, func(row driver.Row) bool {
		rows = append(rows, row)
		return true
	}); err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(rows))
	for _, row := range rows {
		var entity *T

		if st, ok := s.identity[identKey{m.table, row.PK}]; ok {
			if st.status == statusDeleted {
				continue
			}
			if st.expired {
				if err := st.reload(ctx, s); err != nil {
					return nil, err
				}
			}
			entity = st.entity.(*T)
		} else {
			var err error
			entity, err = materialize(ctx, s, m, row)
			if err != nil {
				return nil, err
			}
		}

		if filter != nil && !filter(entity) {
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Delete schedules a tracked entity for deletion at the next flush.
func Delete[T any](s *Session, m *Mapper[T], entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, tracked := s.byPtr[entity]
	if !tracked {
		return fmt.Errorf("orm: cannot delete untracked entity of table %q", m.table)
	}

	if st.status == statusPending {
		// never persisted, just forget it
		delete(s.identity, identKey{st.table, st.pk})
		delete(s.byPtr, entity)
		return nil
	}

	st.status = statusDeleted
	return nil
}

// RefreshOptions configures Refresh
type RefreshOptions struct {
	// ForUpdate takes a row lock before reloading and holds it until the
	// unit of work ends (Commit, Rollback or Close).
	ForUpdate bool
	// LockTTL bounds how long a crashed holder can block the row
	// (0 = no expiry).
	LockTTL time.Duration
}

// Refresh reloads a tracked entity from the database, discarding unflushed
// in-memory modifications. With ForUpdate the row is locked first.
func Refresh[T any](ctx context.Context, s *Session, m *Mapper[T], entity *T, opts *RefreshOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, tracked := s.byPtr[entity]
	if !tracked {
		return &StaleError{Table: m.table, PK: m.pk(entity), Reason: "entity is not tracked by this session"}
	}
	if st.status == statusPending {
		return fmt.Errorf("orm: cannot refresh a pending entity")
	}

	if opts != nil && opts.ForUpdate {
		if err := s.lockRow(ctx, st.table, st.pk, opts.LockTTL); err != nil {
			return err
		}
	}

	return st.reload(ctx, s)
}

// --------------------------------------------------------------------------
// Registration and Materialization
// --------------------------------------------------------------------------

// newState builds the session-side state of one entity, capturing the
// generic mapper in closures.
func newState[T any](s *Session, m *Mapper[T], entity *T, pk uint64) *entityState {
	st := &entityState{
		entity: entity,
		table:  m.table,
		pk:     pk,
	}

	st.encode = func() ([]byte, error) {
		return m.encode(entity)
	}

	st.reload = func(ctx context.Context, s *Session) error {
		conn, err := s.connection(ctx)
		if err != nil {
			return err
		}

		row, loaded, err := conn.Fetch(ctx, st.table, st.pk)
		if err != nil {
			return err
		}
		if !loaded {
			return &StaleError{Table: st.table, PK: st.pk, Reason: "row was deleted underneath the session"}
		}

		if err := m.decode(row.Data, entity); err != nil {
			return err
		}

		st.snapshot = row.Data
		st.version = row.Version
		st.expired = false
		st.status = statusPersistent

		return s.eagerLoad(ctx, st)
	}

	return st
}

// materialize turns a fetched row into a tracked entity. Caller holds s.mu.
func materialize[T any](ctx context.Context, s *Session, m *Mapper[T], row driver.Row) (*T, error) {
	entity := new(T)
	if err := m.decode(row.Data, entity); err != nil {
		return nil, err
	}

	st := newState(s, m, entity, row.PK)
	st.status = statusPersistent
	st.snapshot = row.Data
	st.version = row.Version

	s.identity[identKey{m.table, row.PK}] = st
	s.byPtr[entity] = st

	if m.wire != nil {
		m.wire(s, entity)
	}
	if err := s.eagerLoad(ctx, st); err != nil {
		return nil, err
	}
	return entity, nil
}

// eagerLoad populates the collections of st that ask for loading at
// materialization time
func (s *Session) eagerLoad(ctx context.Context, st *entityState) error {
	for _, c := range st.collections {
		if err := c.eagerLoad(ctx); err != nil {
			return err
		}
	}
	return nil
}

// generatePK returns a random nonzero primary key for entities added
// without one
func generatePK() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		if pk := binary.LittleEndian.Uint64(b[:]); pk != 0 {
			return pk
		}
	}
}

// --------------------------------------------------------------------------
// Flush and Commit
// --------------------------------------------------------------------------

// Flush writes all pending changes out without ending the unit of work.
// On backends with transaction support the writes apply atomically.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Session) flushLocked(ctx context.Context) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	type write struct {
		st   *entityState
		kind entityStatus
		data []byte
	}

	var writes []write
	for _, st := range s.identity {
		switch st.status {
		case statusPending:
			data, err := st.encode()
			if err != nil {
				return err
			}
			writes = append(writes, write{st, statusPending, data})
		case statusPersistent:
			if st.expired {
				continue
			}
			data, isDirty, err := st.dirty()
			if err != nil {
				return err
			}
			if isDirty {
				writes = append(writes, write{st, statusPersistent, data})
			}
		case statusDeleted:
			writes = append(writes, write{st: st, kind: statusDeleted})
		}
	}

	if len(writes) == 0 {
		return nil
	}

	// Apply inside a driver transaction where the backend supports it;
	// otherwise each write autocommits.
	useTx := s.eng.Driver().SupportsFeature(driver.FeatureTx)
	if useTx {
		if err := conn.Begin(ctx); err != nil {
			return err
		}
	}

	apply := func() error {
		for _, w := range writes {
			switch w.kind {
			case statusPending:
				if err := conn.Insert(ctx, w.st.table, w.st.pk, w.data); err != nil {
					return err
				}
			case statusPersistent:
				if err := conn.Update(ctx, w.st.table, w.st.pk, w.data); err != nil {
					return err
				}
			case statusDeleted:
				if err := conn.Delete(ctx, w.st.table, w.st.pk); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := apply(); err != nil {
		if useTx {
			_ = conn.Rollback(ctx)
		}
		return err
	}
	if useTx {
		if err := conn.Commit(ctx); err != nil {
			return err
		}
	}

	// Writes are out; update the bookkeeping.
	for _, w := range writes {
		switch w.kind {
		case statusDeleted:
			delete(s.identity, identKey{w.st.table, w.st.pk})
			delete(s.byPtr, w.st.entity)
		default:
			w.st.status = statusPersistent
			w.st.snapshot = w.data
		}
	}

	Logger.Debugf("session flushed %d writes", len(writes))
	return nil
}

// Commit flushes all pending changes and ends the unit of work. With
// ExpireOnCommit (the default) every tracked entity is marked stale
// afterwards, so later access goes back to the database instead of trusting
// in-memory state. Row locks taken by ForUpdate refreshes are released.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx); err != nil {
		return err
	}

	if s.opts.ExpireOnCommit {
		for _, st := range s.identity {
			st.expire()
		}
	}

	return s.releaseLocks(ctx)
}

// Rollback discards all pending changes and ends the unit of work. Pending
// entities are forgotten, deletions undone, and every remaining tracked
// entity expired so the next access reloads committed state.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, st := range s.identity {
		switch st.status {
		case statusPending:
			delete(s.identity, key)
			delete(s.byPtr, st.entity)
		case statusDeleted:
			st.status = statusPersistent
			st.expire()
		default:
			st.expire()
		}
	}

	return s.releaseLocks(ctx)
}

// Expire marks a single tracked entity stale. The next access reloads it.
func (s *Session) Expire(entity interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, tracked := s.byPtr[entity]
	if !tracked {
		return fmt.Errorf("orm: cannot expire untracked entity")
	}
	st.expire()
	return nil
}

// ExpireAll marks every tracked entity stale.
func (s *Session) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.identity {
		st.expire()
	}
}

// Close releases the session's connection and row locks and drops all
// tracked state. Pending changes are lost.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	err := s.releaseLocks(ctx)
	s.closed = true

	s.identity = nil
	s.byPtr = nil

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return err
}

// --------------------------------------------------------------------------
// Row Locks
// --------------------------------------------------------------------------

// lockName derives the lock name of one row
func lockName(table string, pk uint64) string {
	return fmt.Sprintf("row:%s:%d", table, pk)
}

// lockRow takes the row lock for a ForUpdate refresh. Caller holds s.mu.
func (s *Session) lockRow(ctx context.Context, table string, pk uint64, ttl time.Duration) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	name := lockName(table, pk)
	for _, held := range s.locks {
		if held.name == name {
			return nil // already ours
		}
	}

	var (
		acquired bool
		ownerID  []byte
	)
	if err := conn.RunSync(ctx, func(sc *bridge.SyncConn) error {
		lm := locks.NewLockManager(sc)
		var err error
		acquired, ownerID, err = lm.AcquireLock(name, ttl)
		return err
	}); err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("row %d of table %q is locked elsewhere: %w", pk, table, ErrLockNotAcquired)
	}

	s.locks = append(s.locks, heldLock{name: name, ownerID: ownerID})
	return nil
}

// releaseLocks releases all held row locks. Caller holds s.mu.
func (s *Session) releaseLocks(ctx context.Context) error {
	if len(s.locks) == 0 {
		return nil
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	held := s.locks
	s.locks = nil

	return conn.RunSync(ctx, func(sc *bridge.SyncConn) error {
		lm := locks.NewLockManager(sc)
		for _, l := range held {
			if _, err := lm.ReleaseLock(l.name, l.ownerID); err != nil {
				return err
			}
		}
		return nil
	})
}
