package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndb/syndb/lib/driver/engines/memtable"
)

func TestSubmitRunsInOrder(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	const numTasks = 100

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	// Concurrent submitters: per submitter the order must hold, and no two
	// tasks may ever observe themselves running at the same time.
	var running int
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func(i int) {
			defer wg.Done()
			err := p.Submit(context.Background(), func() error {
				mu.Lock()
				running++
				assert.Equal(t, 1, running, "two tasks running concurrently")
				order = append(order, i)
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, numTasks)
}

func TestSubmitReturnsTaskError(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	wantErr := errors.New("boom")
	err := p.Submit(context.Background(), func() error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	err := p.Submit(context.Background(), func() error {
		panic("kaboom")
	})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)

	// the service goroutine must survive the panic
	err = p.Submit(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestSubmitCancelledBeforeAccept(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	// Occupy the service goroutine so the next submission blocks
	release := make(chan struct{})
	go func() {
		_ = p.Submit(context.Background(), func() error {
			<-release
			return nil
		})
	}()

	// Give the blocking task time to be picked up
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := p.Submit(ctx, func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	// The cancelled task must never have run
	_ = p.Submit(context.Background(), func() error { return nil })
	assert.False(t, ran)
}

func TestSubmitCancelledWhileRunning(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		<-started
		cancel()
	}()

	err := p.Submit(ctx, func() error {
		close(started)
		// The task keeps running after cancellation and must complete
		time.Sleep(20 * time.Millisecond)
		close(finished)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)

	// the detached task still ran to completion
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("detached task did not complete")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewPortal("test")
	p.Close()

	err := p.Submit(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrPortalClosed)

	// closing twice is fine
	p.Close()
}

func TestRunSyncProvidesWorkingConn(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	d := memtable.NewMemtableDB(nil)
	defer d.Close()
	conn, err := d.Open()
	require.NoError(t, err)
	defer conn.Close()

	err = p.RunSync(context.Background(), conn, func(sc *SyncConn) error {
		if err := sc.Insert("users", 1, []byte("alice")); err != nil {
			return err
		}
		row, loaded, err := sc.Fetch("users", 1)
		if err != nil {
			return err
		}
		if !loaded {
			return errors.New("row not found")
		}
		if string(row.Data) != "alice" {
			return errors.New("unexpected row data")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRetainedSyncConnIsDisarmed(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	d := memtable.NewMemtableDB(nil)
	defer d.Close()
	conn, err := d.Open()
	require.NoError(t, err)
	defer conn.Close()

	var leaked *SyncConn
	err = p.RunSync(context.Background(), conn, func(sc *SyncConn) error {
		leaked = sc
		return nil
	})
	require.NoError(t, err)

	// every operation on the leaked handle must fail loudly
	assert.ErrorIs(t, leaked.Insert("users", 1, nil), ErrNoBridge)
	_, _, err = leaked.Fetch("users", 1)
	assert.ErrorIs(t, err, ErrNoBridge)
	assert.ErrorIs(t, leaked.Begin(), ErrNoBridge)
	assert.ErrorIs(t, leaked.Commit(), ErrNoBridge)
	assert.ErrorIs(t, leaked.Rollback(), ErrNoBridge)
}

func TestPortalContextPlumbing(t *testing.T) {
	p := NewPortal("test")
	defer p.Close()

	assert.Nil(t, FromContext(context.Background()))

	ctx := WithPortal(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
}
