package locks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/engines/memtable"
)

func newTestManager(t *testing.T) (ILockManager, driver.Conn) {
	t.Helper()

	d := memtable.NewMemtableDB(nil)
	t.Cleanup(func() { _ = d.Close() })

	conn, err := d.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewLockManager(conn), conn
}

func TestAcquireRelease(t *testing.T) {
	lm, _ := newTestManager(t)

	ok, ownerID, err := lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ownerID, ownerIDLength)

	released, err := lm.ReleaseLock("resource:1", ownerID)
	require.NoError(t, err)
	assert.True(t, released)

	// reacquire after release
	ok, _, err = lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireContention(t *testing.T) {
	lm, _ := newTestManager(t)

	ok, ownerID, err := lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// a second acquire must fail while the lock is held
	ok, otherID, err := lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, otherID)

	// an unrelated name is not affected
	ok, _, err = lm.AcquireLock("resource:2", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = lm.ReleaseLock("resource:1", ownerID)
	require.NoError(t, err)
}

func TestReleaseVerifiesOwnership(t *testing.T) {
	lm, _ := newTestManager(t)

	ok, ownerID, err := lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// release with a wrong owner ID must be refused
	bogus := make([]byte, ownerIDLength)
	released, err := lm.ReleaseLock("resource:1", bogus)
	require.NoError(t, err)
	assert.False(t, released)

	// the lock must still be held
	ok, _, err = lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err = lm.ReleaseLock("resource:1", ownerID)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestReleaseMissingLock(t *testing.T) {
	lm, _ := newTestManager(t)

	released, err := lm.ReleaseLock("never-acquired", []byte("whatever"))
	require.NoError(t, err)
	assert.True(t, released)
}

func TestExpiredLockIsStolen(t *testing.T) {
	lm, _ := newTestManager(t)

	ok, _, err := lm.AcquireLock("resource:1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// before expiry the lock is held
	ok, _, err = lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)

	// after expiry the lock can be stolen
	ok, ownerID, err := lm.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	released, err := lm.ReleaseLock("resource:1", ownerID)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestManagersShareState(t *testing.T) {
	d := memtable.NewMemtableDB(nil)
	t.Cleanup(func() { _ = d.Close() })

	conn1, err := d.Open()
	require.NoError(t, err)
	conn2, err := d.Open()
	require.NoError(t, err)

	lm1 := NewLockManager(conn1)
	lm2 := NewLockManager(conn2)

	ok, ownerID, err := lm1.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// a manager on another connection sees the lock
	ok, _, err = lm2.AcquireLock("resource:1", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// and can release it with the right owner ID
	released, err := lm2.ReleaseLock("resource:1", ownerID)
	require.NoError(t, err)
	assert.True(t, released)
}
