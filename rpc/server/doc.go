// Package server implements the RPC server hosting named databases.
// It provides the adapter handling row operation requests against a database
// driver, along with the core server implementation that manages databases
// and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for row and metadata operations
//   - Adapter pattern to decouple driver logic from RPC mechanisms
//   - Hosting any number of independent named databases in one process
//   - Snapshot persistence of hosted databases across restarts
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     driver.Driver.
//
//   - NewDriverServerAdapter: Factory function creating an adapter for row
//     operations, translating RPC requests to driver connection method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Databases: map[uint64]string{
//	    100: "memtable",
//	    200: "memtable",
//	  },
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// When a data directory is configured, each database is restored from its
// snapshot file on startup and saved back on SIGINT/SIGTERM. Without a data
// directory, databases are volatile.
//
// Per-database request and error counters are registered with the process
// metrics set; the HTTP transport exposes them under GET /metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently on its
//	own driver connection. The Serve method is not thread-safe and should be
//	called only once.
package server
