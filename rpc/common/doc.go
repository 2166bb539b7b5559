// Package common provides core data structures shared across the RPC layer.
// It defines the message protocol and the configuration structures used by
// the client, server, transport and serializer packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to different operation types. Includes factory
//     methods for creating the various request and response messages. Driver
//     errors travel with their return code so the client side can rebuild a
//     typed driver.Error.
//
//   - MessageType: Enumeration defining all supported operation types, one
//     per row operation of the driver connection interface plus database
//     metadata and control messages.
//
//   - ServerConfig: Configuration for server nodes, including the hosted
//     databases, snapshot storage, transport and logging settings.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
package common
