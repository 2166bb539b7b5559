// Package http implements an HTTP-based transport layer for RPC communication.
// It provides concrete implementations of the transport interfaces defined in
// the parent package, enabling communication between clients and servers over
// HTTP.
//
// The package focuses on:
//   - Client-side HTTP transport for sending RPC requests to servers
//   - Server-side HTTP transport for receiving and handling RPC requests
//   - Round-robin load balancing across multiple server endpoints
//   - Request routing based on database IDs
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport, managing connections
//     to server endpoints, handling request routing, and implementing retry
//     mechanisms. It uses round-robin selection for load balancing across
//     multiple server endpoints.
//
//   - httpServerTransport: Implements IRPCServerTransport, setting up an HTTP
//     server that routes incoming requests to the registered handler. Requests
//     are POSTed to /{databaseID} with the serialized message as the body.
//     The server additionally exposes Prometheus metrics under GET /metrics.
//
// HTTP is the simplest transport to operate behind existing load balancers and
// proxies, at the cost of higher per-request overhead than the framed TCP and
// Unix socket transports.
package http
