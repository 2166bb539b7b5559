// Package ws implements a WebSocket-based transport layer for the RPC system
// using the gorilla/websocket library. It combines the firewall friendliness
// of HTTP with the multiplexed, long-lived connections of the framed socket
// transports.
//
// Connections are established with a single HTTP upgrade on /rpc and then
// carry any number of concurrent requests. Each request travels as one binary
// WebSocket message holding a 16 byte header (databaseID, requestID) followed
// by the serialized payload. Because WebSocket preserves message boundaries,
// no length prefix is required.
//
// Key Components:
//
//   - wsClientTransport: Implements IRPCClientTransport. Maintains a pool of
//     connections per endpoint with round-robin selection and correlates
//     responses to in-flight requests via request IDs.
//
//   - wsServerTransport: Implements IRPCServerTransport. Upgrades incoming
//     HTTP requests and serves frames with a bounded per-connection worker
//     pool, mirroring the framed socket server.
//
// Unlike raw TCP, a WebSocket connection permits only one concurrent writer,
// so both sides serialize writes with a mutex.
package ws
