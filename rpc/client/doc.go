// Package client implements the RPC client side of the system. It provides a
// driver.Driver implementation that forwards row operations to a remote
// server via the transport and serialization layers.
//
// The package focuses on:
//   - Transparent access to remote databases through the driver interface
//   - Integration with the transport and serialization layers
//   - Rebuilding typed driver errors from RPC responses
//   - DSN scheme registration for the engine layer
//
// Key Components:
//
//   - NewRPCDriver: Factory function that creates a client implementing the
//     driver.Driver interface. All connections hand their operations to the
//     shared transport, which multiplexes them over its network connections.
//
//   - Scheme registration: Importing this package registers the tcp, unix,
//     http and ws DSN schemes with the engine registry, so remote databases
//     open like local ones:
//
//	import _ "github.com/syndb/syndb/rpc/client"
//
//	eng, err := engine.Connect("tcp://10.0.0.1:8080?db=100&serializer=binary")
//
// Capabilities:
//
//	The remote driver does not advertise transaction or snapshot support.
//	A transaction is connection state, and the transport shares its network
//	connections between many logical connections; sessions degrade to
//	autocommit writes. Snapshots are managed by the server process.
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing the
//     conns DSN parameter can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The driver and its connections are thread-safe. The usual caveat that a
//	driver connection must not execute two operations concurrently is lifted
//	here because connections hold no state, but layers above still serialize
//	access through the bridge portal.
package client
