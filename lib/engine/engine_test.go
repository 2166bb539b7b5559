package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndb/syndb/lib/bridge"
	"github.com/syndb/syndb/lib/driver"
)

func newTestEngine(t *testing.T, dsn string) *Engine {
	t.Helper()

	e, err := Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestConnectAndBasicOps(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	conn, err := e.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Insert(ctx, "users", 1, []byte("alice")))

	row, loaded, err := conn.Fetch(ctx, "users", 1)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, []byte("alice"), row.Data)

	require.NoError(t, conn.Update(ctx, "users", 1, []byte("bob")))
	require.NoError(t, conn.Delete(ctx, "users", 1))

	_, loaded, err = conn.Fetch(ctx, "users", 1)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestDuplicateEngineNamesStayDistinct(t *testing.T) {
	// Two engines with the same name param must not share an instance name,
	// otherwise the second engine's idle gauge stays bound to the first
	// engine's pool.
	e1 := newTestEngine(t, "memtable://?name=shared")
	e2 := newTestEngine(t, "memtable://?name=shared")

	assert.NotEqual(t, e1.Name(), e2.Name())
	assert.Contains(t, e1.Name(), "shared")
	assert.Contains(t, e2.Name(), "shared")
}

func TestTransactionThroughEngine(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	conn, err := e.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Insert(ctx, "users", 1, []byte("a")))
	require.NoError(t, conn.Insert(ctx, "users", 2, []byte("b")))
	require.NoError(t, conn.Commit(ctx))
	conn.Close()

	conn2, err := e.Connect(ctx)
	require.NoError(t, err)
	defer conn2.Close()

	row1, loaded, err := conn2.Fetch(ctx, "users", 1)
	require.NoError(t, err)
	require.True(t, loaded)
	row2, _, err := conn2.Fetch(ctx, "users", 2)
	require.NoError(t, err)
	assert.Equal(t, row1.Version, row2.Version, "transaction rows must share one commit version")
}

func TestCloseRollsBackOpenTransaction(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	conn, err := e.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(ctx, "users", 1, []byte("uncommitted")))
	conn.Close()

	conn2, err := e.Connect(ctx)
	require.NoError(t, err)
	defer conn2.Close()

	_, loaded, err := conn2.Fetch(ctx, "users", 1)
	require.NoError(t, err)
	assert.False(t, loaded, "uncommitted write must be rolled back on Close")
}

func TestRunSync(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	var leaked *bridge.SyncConn
	err := e.RunSync(ctx, func(sc *bridge.SyncConn) error {
		leaked = sc
		if err := sc.Insert("users", 1, []byte("alice")); err != nil {
			return err
		}
		_, loaded, err := sc.Fetch("users", 1)
		if err != nil {
			return err
		}
		if !loaded {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)

	// the synchronous view must not work outside the portal run
	assert.ErrorIs(t, leaked.Insert("users", 2, nil), bridge.ErrNoBridge)
}

func TestCrossPortalUseFails(t *testing.T) {
	e := newTestEngine(t, "memtable://")

	p1 := bridge.NewPortal("portal-1")
	defer p1.Close()
	p2 := bridge.NewPortal("portal-2")
	defer p2.Close()

	ctx1 := bridge.WithPortal(context.Background(), p1)
	ctx2 := bridge.WithPortal(context.Background(), p2)

	// first use binds the engine to portal-1
	conn, err := e.Connect(ctx1)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(ctx1, "users", 1, []byte("a")))
	conn.Close()

	// use from portal-2 must fail with the cross-portal error
	_, err = e.Connect(ctx2)
	assert.ErrorIs(t, err, bridge.ErrCrossPortal)

	// a checked-out connection also rejects foreign portals
	conn, err = e.Connect(ctx1)
	require.NoError(t, err)
	defer conn.Close()
	assert.ErrorIs(t, conn.Insert(ctx2, "users", 2, nil), bridge.ErrCrossPortal)
}

func TestDisposeUnbindsPortal(t *testing.T) {
	e := newTestEngine(t, "memtable://")

	p1 := bridge.NewPortal("portal-1")
	defer p1.Close()
	p2 := bridge.NewPortal("portal-2")
	defer p2.Close()

	ctx1 := bridge.WithPortal(context.Background(), p1)
	ctx2 := bridge.WithPortal(context.Background(), p2)

	conn, err := e.Connect(ctx1)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(ctx1, "users", 1, []byte("a")))
	conn.Close()

	_, err = e.Connect(ctx2)
	require.ErrorIs(t, err, bridge.ErrCrossPortal)

	// dispose releases the binding; the engine is usable in the new portal
	// and the data survives (dispose recycles connections, not the backend)
	require.NoError(t, e.Dispose())

	conn, err = e.Connect(ctx2)
	require.NoError(t, err)
	defer conn.Close()

	_, loaded, err := conn.Fetch(ctx2, "users", 1)
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestDisposeClosesIdleConnections(t *testing.T) {
	e := newTestEngine(t, "memtable://?pool_size=4")
	ctx := context.Background()

	// populate the pool
	conns := make([]*Conn, 4)
	for i := range conns {
		conn, err := e.Connect(ctx)
		require.NoError(t, err)
		conns[i] = conn
	}
	for _, conn := range conns {
		conn.Close()
	}
	require.Equal(t, 4, e.pool.idle())

	require.NoError(t, e.Dispose())
	assert.Equal(t, 0, e.pool.idle(), "dispose must leave no idle connections behind")
}

func TestDisposeRetiresCheckedOutConnections(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	conn, err := e.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(ctx, "users", 1, []byte("a")))

	require.NoError(t, e.Dispose())

	// the old-generation connection must not return to the pool
	conn.Close()
	assert.Equal(t, 0, e.pool.idle())
}

func TestNullPool(t *testing.T) {
	e := newTestEngine(t, "memtable://?pool=none")
	ctx := context.Background()

	conn, err := e.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(ctx, "users", 1, []byte("a")))
	conn.Close()

	// nothing is ever retained
	assert.Equal(t, 0, e.pool.idle())

	// data lives in the shared backend, not the connection
	conn2, err := e.Connect(ctx)
	require.NoError(t, err)
	defer conn2.Close()
	_, loaded, err := conn2.Fetch(ctx, "users", 1)
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestUseAfterClose(t *testing.T) {
	e, err := Connect("memtable://")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		want    Config
		wantErr bool
	}{
		{
			dsn:  "memtable://",
			want: Config{Scheme: "memtable", PoolMode: PoolQueue, PoolSize: defaultPoolSize},
		},
		{
			dsn:  "memtable://?shards=8&pool=none",
			want: Config{Scheme: "memtable", Shards: 8, PoolMode: PoolNone, PoolSize: defaultPoolSize},
		},
		{
			dsn: "tcp://10.0.0.1:8080,10.0.0.2:8080?db=100&pool_size=2",
			want: Config{
				Scheme:     "tcp",
				Endpoints:  []string{"10.0.0.1:8080", "10.0.0.2:8080"},
				DatabaseID: 100,
				PoolMode:   PoolQueue,
				PoolSize:   2,
			},
		},
		{dsn: "memtable://?pool=bogus", wantErr: true},
		{dsn: "memtable://?pool_size=0", wantErr: true},
		{dsn: "://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			cfg, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Scheme, cfg.Scheme)
			assert.Equal(t, tt.want.Endpoints, cfg.Endpoints)
			assert.Equal(t, tt.want.DatabaseID, cfg.DatabaseID)
			assert.Equal(t, tt.want.Shards, cfg.Shards)
			assert.Equal(t, tt.want.PoolMode, cfg.PoolMode)
			assert.Equal(t, tt.want.PoolSize, cfg.PoolSize)
		})
	}
}

func TestScanThroughEngine(t *testing.T) {
	e := newTestEngine(t, "memtable://")
	ctx := context.Background()

	conn, err := e.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, conn.Insert(ctx, "users", i, []byte{byte(i)}))
	}

	var rows []driver.Row
	require.NoError(t, conn.Scan(ctx, "users", func(row driver.Row) bool {
		rows = append(rows, row)
		return true
	}))
	assert.Len(t, rows, 10)
}
