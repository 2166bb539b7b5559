package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndb/syndb/lib/engine"
)

// --------------------------------------------------------------------------
// Test Entities
// --------------------------------------------------------------------------

type user struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Orders *Collection[order] `json:"-"`
}

type order struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"user_id"`
	Amount int    `json:"amount"`
}

var orderMapper = NewMapper[order]("orders",
	func(o *order) uint64 { return o.ID },
	WithAssignedPK(func(o *order, pk uint64) { o.ID = pk }),
)

// userMapperWith builds a user mapper whose Orders relation uses the given
// load strategy
func userMapperWith(strategy LoadStrategy) *Mapper[user] {
	return NewMapper[user]("users",
		func(u *user) uint64 { return u.ID },
		WithAssignedPK(func(u *user, pk uint64) { u.ID = pk }),
		WithRelations(func(s *Session, u *user) {
			u.Orders = NewCollection(s, u, "orders", orderMapper,
				func(o *order) bool { return o.UserID == u.ID },
				strategy)
		}),
	)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func newTestFactory(t *testing.T, opts *SessionOptions) *SessionFactory {
	t.Helper()

	eng, err := engine.Connect("memtable://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return NewSessionFactory(eng, opts)
}

// seedUserWithOrders commits one user with two orders and returns the
// user's primary key
func seedUserWithOrders(t *testing.T, f *SessionFactory, m *Mapper[user]) uint64 {
	t.Helper()
	ctx := context.Background()

	s := f.NewSession()
	defer s.Close(ctx)

	u := &user{Name: "alice"}
	require.NoError(t, Add(s, m, u))
	require.NoError(t, Add(s, orderMapper, &order{UserID: u.ID, Amount: 10}))
	require.NoError(t, Add(s, orderMapper, &order{UserID: u.ID, Amount: 20}))
	require.NoError(t, s.Commit(ctx))

	return u.ID
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestAddCommitGet(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	s1 := f.NewSession()
	defer s1.Close(ctx)

	u := &user{Name: "alice"}
	require.NoError(t, Add(s1, m, u))
	require.NotZero(t, u.ID, "Add must assign a primary key")
	require.NoError(t, s1.Commit(ctx))

	s2 := f.NewSession()
	defer s2.Close(ctx)

	loaded, err := Get(ctx, s2, m, u.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "alice", loaded.Name)

	missing, err := Get(ctx, s2, m, 424242)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAddAllAndSelect(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	s1 := f.NewSession()
	defer s1.Close(ctx)

	alice := &user{Name: "alice"}
	bob := &user{Name: "bob"}
	carol := &user{Name: "carol"}
	require.NoError(t, AddAll(s1, m, alice, bob, carol))
	require.NoError(t, s1.Commit(ctx))

	// an already tracked entity fails the batch, earlier entities stay tracked
	dave := &user{Name: "dave"}
	require.Error(t, AddAll(s1, m, dave, alice))
	require.NoError(t, s1.Commit(ctx))

	s2 := f.NewSession()
	defer s2.Close(ctx)

	bobs, err := Select(ctx, s2, m, func(u *user) bool { return u.Name == "bob" })
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bob", bobs[0].Name)

	none, err := Select(ctx, s2, m, func(u *user) bool { return u.Name == "erin" })
	require.NoError(t, err)
	assert.Empty(t, none)

	// Select reuses identity-map pointers like All
	again, err := Select(ctx, s2, m, func(u *user) bool { return u.Name == "bob" })
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Same(t, bobs[0], again[0])
}

func TestIdentityMap(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u1, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	u2, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	assert.Same(t, u1, u2, "one row, one pointer")

	all, err := All(ctx, s, m)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Same(t, u1, all[0])
}

func TestDirtyUpdate(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s1 := f.NewSession()
	defer s1.Close(ctx)

	u, err := Get(ctx, s1, m, pk)
	require.NoError(t, err)
	u.Name = "bob"
	require.NoError(t, s1.Commit(ctx))

	s2 := f.NewSession()
	defer s2.Close(ctx)

	reloaded, err := Get(ctx, s2, m, pk)
	require.NoError(t, err)
	assert.Equal(t, "bob", reloaded.Name)
}

func TestDeleteEntity(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s1 := f.NewSession()
	defer s1.Close(ctx)

	u, err := Get(ctx, s1, m, pk)
	require.NoError(t, err)
	require.NoError(t, Delete(s1, m, u))
	require.NoError(t, s1.Commit(ctx))

	s2 := f.NewSession()
	defer s2.Close(ctx)

	gone, err := Get(ctx, s2, m, pk)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestExpireOnCommitGuardsCollections(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)

	// before commit the relation loads normally
	ordersBefore, err := u.Orders.All(ctx)
	require.NoError(t, err)
	require.Len(t, ordersBefore, 2)

	u.Name = "bob"
	require.NoError(t, s.Commit(ctx))

	// after commit the parent is expired: relation access must fail loudly
	// instead of serving cached children
	_, err = u.Orders.All(ctx)
	var staleErr *StaleError
	require.ErrorAs(t, err, &staleErr)
	assert.Equal(t, "users", staleErr.Table)
	assert.Equal(t, pk, staleErr.PK)

	// an explicit reload lifts the guard
	u2, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	assert.Same(t, u, u2, "reload must keep entity identity")

	ordersAfter, err := u.Orders.All(ctx)
	require.NoError(t, err)
	assert.Len(t, ordersAfter, 2)
}

func TestExpireOnCommitDisabled(t *testing.T) {
	f := newTestFactory(t, &SessionOptions{ExpireOnCommit: false})
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	// without expire-on-commit the entity and its relations stay live
	orders, err := u.Orders.All(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestRaiseStrategy(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadRaise)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)

	// implicit loading is forbidden
	_, err = u.Orders.All(ctx)
	var ioErr *ImplicitIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "orders", ioErr.Relation)

	// explicit population is the sanctioned path
	require.NoError(t, u.Orders.Populate(ctx))
	orders, err := u.Orders.All(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestNoneStrategy(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadNone)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)

	orders, err := u.Orders.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSelectInStrategy(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadSelectIn)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)

	// loaded eagerly at materialization
	assert.True(t, u.Orders.Loaded())

	orders, err := u.Orders.All(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestRollback(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	u.Name = "mallory"

	pending := &user{Name: "pending"}
	require.NoError(t, Add(s, m, pending))

	require.NoError(t, s.Rollback(ctx))

	// the modified entity is expired; reloading restores committed state
	reloaded, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	assert.Equal(t, "alice", reloaded.Name)

	// the pending entity is forgotten
	gone, err := Get(ctx, s, m, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStaleRowDeletedUnderneath(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s1 := f.NewSession()
	defer s1.Close(ctx)
	u, err := Get(ctx, s1, m, pk)
	require.NoError(t, err)
	require.NoError(t, s1.Commit(ctx)) // expires u

	// another session deletes the row
	s2 := f.NewSession()
	defer s2.Close(ctx)
	u2, err := Get(ctx, s2, m, pk)
	require.NoError(t, err)
	require.NoError(t, Delete(s2, m, u2))
	require.NoError(t, s2.Commit(ctx))

	// reloading the expired entity finds the row gone
	_, err = Get(ctx, s1, m, pk)
	var staleErr *StaleError
	require.ErrorAs(t, err, &staleErr)
	_ = u
}

func TestRefreshDiscardsLocalChanges(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)
	u.Name = "unsaved"

	require.NoError(t, Refresh(ctx, s, m, u, nil))
	assert.Equal(t, "alice", u.Name)
}

func TestRefreshForUpdate(t *testing.T) {
	f := newTestFactory(t, nil)
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s1 := f.NewSession()
	defer s1.Close(ctx)
	s2 := f.NewSession()
	defer s2.Close(ctx)

	u1, err := Get(ctx, s1, m, pk)
	require.NoError(t, err)
	u2, err := Get(ctx, s2, m, pk)
	require.NoError(t, err)

	// s1 locks the row
	require.NoError(t, Refresh(ctx, s1, m, u1, &RefreshOptions{ForUpdate: true}))

	// s2 cannot lock it concurrently
	err = Refresh(ctx, s2, m, u2, &RefreshOptions{ForUpdate: true})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// committing s1 releases the lock
	u1.Name = "locked-update"
	require.NoError(t, s1.Commit(ctx))

	require.NoError(t, Refresh(ctx, s2, m, u2, &RefreshOptions{ForUpdate: true}))
	assert.Equal(t, "locked-update", u2.Name)
	require.NoError(t, s2.Rollback(ctx))
}

func TestAddWithoutAssignablePK(t *testing.T) {
	f := newTestFactory(t, nil)
	ctx := context.Background()

	// a mapper without a PK setter cannot accept PK 0
	plain := NewMapper[order]("orders", func(o *order) uint64 { return o.ID })

	s := f.NewSession()
	defer s.Close(ctx)

	err := Add(s, plain, &order{Amount: 1})
	require.Error(t, err)

	// an explicit PK is fine
	require.NoError(t, Add(s, plain, &order{ID: 7, Amount: 1}))
	require.NoError(t, s.Commit(ctx))
}

func TestExpireSingleEntity(t *testing.T) {
	f := newTestFactory(t, &SessionOptions{ExpireOnCommit: false})
	m := userMapperWith(LoadLazy)
	ctx := context.Background()

	pk := seedUserWithOrders(t, f, m)

	s := f.NewSession()
	defer s.Close(ctx)

	u, err := Get(ctx, s, m, pk)
	require.NoError(t, err)

	require.NoError(t, s.Expire(u))
	_, err = u.Orders.All(ctx)
	var staleErr *StaleError
	assert.ErrorAs(t, err, &staleErr)

	assert.Error(t, s.Expire(&user{}), "untracked entities cannot be expired")

	// errors.Is also works through the concrete type
	assert.False(t, errors.Is(err, ErrLockNotAcquired))
}
