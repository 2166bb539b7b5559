package engine

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/engines/memtable"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// PoolMode selects the connection pooling strategy of an engine
type PoolMode string

const (
	// PoolQueue keeps released connections for reuse (the default)
	PoolQueue PoolMode = "queue"
	// PoolNone opens a fresh connection per acquisition and closes it on
	// release. Useful when connections must not outlive their use, e.g. in
	// tests or short-lived tools.
	PoolNone PoolMode = "none"
)

const defaultPoolSize = 5

// Config holds the parsed engine configuration
type Config struct {
	// Scheme selects the driver backend ("memtable", "tcp", "unix", ...)
	Scheme string
	// Endpoints are the backend addresses for remote schemes
	Endpoints []string
	// DatabaseID selects the named database on a remote server
	DatabaseID uint64
	// Shards configures the shard count of a local memtable backend (0 = auto)
	Shards int
	// PoolMode selects the pooling strategy
	PoolMode PoolMode
	// PoolSize is the number of idle connections retained by PoolQueue
	PoolSize int
	// Params carries all remaining DSN query parameters for driver openers
	Params url.Values
}

// ParseDSN parses a data source name of the form
//
//	scheme://[endpoint[,endpoint...]][?param=value&...]
//
// Recognized parameters: pool (queue|none), pool_size, shards, db.
// Examples:
//
//	memtable://?shards=8
//	memtable://?pool=none
//	tcp://10.0.0.1:8080,10.0.0.2:8080?db=100
func ParseDSN(dsn string) (Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DSN %q: %w", dsn, err)
	}
	if u.Scheme == "" {
		return Config{}, fmt.Errorf("invalid DSN %q: missing scheme", dsn)
	}

	cfg := Config{
		Scheme:   u.Scheme,
		PoolMode: PoolQueue,
		PoolSize: defaultPoolSize,
		Params:   u.Query(),
	}

	if u.Host != "" {
		cfg.Endpoints = strings.Split(u.Host, ",")
	} else if u.Path != "" && u.Path != "/" {
		// Path-style endpoints, e.g. unix:///tmp/syndb.sock
		cfg.Endpoints = []string{u.Path}
	}

	if v := cfg.Params.Get("pool"); v != "" {
		switch PoolMode(v) {
		case PoolQueue, PoolNone:
			cfg.PoolMode = PoolMode(v)
		default:
			return Config{}, fmt.Errorf("invalid DSN %q: unknown pool mode %q", dsn, v)
		}
	}

	if v := cfg.Params.Get("pool_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return Config{}, fmt.Errorf("invalid DSN %q: bad pool_size %q", dsn, v)
		}
		cfg.PoolSize = size
	}

	if v := cfg.Params.Get("shards"); v != "" {
		shards, err := strconv.Atoi(v)
		if err != nil || shards < 1 {
			return Config{}, fmt.Errorf("invalid DSN %q: bad shards %q", dsn, v)
		}
		cfg.Shards = shards
	}

	if v := cfg.Params.Get("db"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DSN %q: bad db %q", dsn, v)
		}
		cfg.DatabaseID = id
	}

	return cfg, nil
}

// --------------------------------------------------------------------------
// Driver Registry
// --------------------------------------------------------------------------

// DriverOpener creates a driver backend from a parsed configuration
type DriverOpener func(cfg Config) (driver.Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]DriverOpener{}
)

// Register makes a driver backend available under the given DSN scheme.
// Remote backends register themselves on import, in the manner of
// database/sql drivers.
func Register(scheme string, opener DriverOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = opener
}

// openerFor returns the registered opener for a scheme
func openerFor(scheme string) (DriverOpener, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	opener, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("no driver registered for scheme %q", scheme)
	}
	return opener, nil
}

func init() {
	Register("memtable", func(cfg Config) (driver.Driver, error) {
		opts := memtable.DefaultOptions()
		if cfg.Shards > 0 {
			opts.NumShards = cfg.Shards
		}
		return memtable.NewMemtableDB(opts), nil
	})
}
