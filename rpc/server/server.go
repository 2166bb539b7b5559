package server

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/engines/memtable"
	"github.com/syndb/syndb/lib/logging"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/serializer"
	"github.com/syndb/syndb/rpc/transport"
)

var Logger = logging.GetLogger("rpc")

// serverDatabase is one named database hosted by the RPC server. It pairs the
// driver with the adapter that dispatches requests onto it and the counters
// tracking its traffic.
type serverDatabase struct {
	Driver   driver.Driver
	Adapter  IRPCServerAdapter
	requests *metrics.Counter
	errors   *metrics.Counter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create databases map
	databaseMap := xsync.NewMapOf[uint64, serverDatabase]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		databases:  databaseMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	databases  *xsync.MapOf[uint64, serverDatabase]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(databaseID uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get the addressed database
		database, ok := s.databases.Load(databaseID)

		// Case database does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "database not found",
			}
		} else {
			database.requests.Inc()

			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *database.Adapter.Handle(&msg, database.Driver)
			}

			if respMsg.Err != "" {
				database.errors.Inc()
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %s", err)
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {
	// Apply the configured log level to all loggers
	if s.config.LogLevel != "" {
		level, err := logging.ParseLevel(s.config.LogLevel)
		if err != nil {
			return err
		}
		logging.SetAllLevels(level)
	}

	// CREATE DATABASES

	/*
		Note: A single RPC server can host any number of independent named
		databases. Each is served by its own driver instance; the database ID
		routes requests to it.
	*/

	for id, engineName := range s.config.Databases {
		drv, err := s.createDriver(engineName)
		if err != nil {
			return fmt.Errorf("database %d: %w", id, err)
		}

		// Restore the latest snapshot if one exists
		if err := s.loadSnapshot(id, drv); err != nil {
			return fmt.Errorf("database %d: %w", id, err)
		}

		s.databases.Store(id, serverDatabase{
			Driver:   drv,
			Adapter:  NewDriverServerAdapter(),
			requests: metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_rpc_requests_total{database="%d"}`, id)),
			errors:   metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_rpc_errors_total{database="%d"}`, id)),
		})
		Logger.Infof("created %s database %d", engineName, id)
	}

	Logger.Infof("server setup completed successfully")

	// Persist snapshots on shutdown signals
	if s.config.DataDir != "" {
		go s.handleShutdown()
	}

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the hosted databases and start the
// transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// createDriver instantiates the driver backend for a database
func (s *rpcServer) createDriver(engineName string) (driver.Driver, error) {
	switch engineName {
	case "memtable":
		opts := memtable.DefaultOptions()
		if s.config.Shards > 0 {
			opts.NumShards = s.config.Shards
		}
		return memtable.NewMemtableDB(opts), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engineName)
	}
}

// snapshotPath returns the snapshot file of a database
func (s *rpcServer) snapshotPath(id uint64) string {
	return filepath.Join(s.config.DataDir, fmt.Sprintf("db-%d.syndb", id))
}

// loadSnapshot restores a database from its snapshot file, if the server is
// configured with a data directory and the file exists
func (s *rpcServer) loadSnapshot(id uint64, drv driver.Driver) error {
	if s.config.DataDir == "" {
		return nil
	}

	path := s.snapshotPath(id)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()

	if err := drv.Load(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}

	Logger.Infof("restored database %d from %s", id, path)
	return nil
}

// saveSnapshots persists every hosted database to the data directory
func (s *rpcServer) saveSnapshots() {
	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		Logger.Errorf("failed to create data directory %s: %v", s.config.DataDir, err)
		return
	}

	s.databases.Range(func(id uint64, database serverDatabase) bool {
		path := s.snapshotPath(id)
		f, err := os.Create(path)
		if err != nil {
			Logger.Errorf("failed to create snapshot %s: %v", path, err)
			return true
		}

		if err := database.Driver.Save(f); err != nil {
			Logger.Errorf("failed to save snapshot %s: %v", path, err)
		} else {
			Logger.Infof("saved database %d to %s", id, path)
		}

		if err := f.Close(); err != nil {
			Logger.Errorf("failed to close snapshot %s: %v", path, err)
		}
		return true
	})
}

// handleShutdown saves all databases when the process receives a termination
// signal, then exits
func (s *rpcServer) handleShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	Logger.Infof("received %s, saving databases", sig)
	s.saveSnapshots()
	os.Exit(0)
}
