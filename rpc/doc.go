// Package rpc provides a comprehensive framework for remote procedure calls.
// It acts as the communication layer between clients and database servers,
// enabling row operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     Message protocol and the configuration structures.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP, WebSocket).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The remote driver implementation, allowing the engine and ORM
//     layers to work with remote databases transparently. Importing it
//     registers the remote DSN schemes.
//
//   - server: RPC server components that handle incoming requests, hosting
//     any number of named databases behind a single endpoint.
package rpc
