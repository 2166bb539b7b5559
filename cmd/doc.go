// Package cmd implements the command-line interface for syndb. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - row: Commands for row operations (insert, fetch, delete, etc.)
//   - serve: Commands for starting and configuring the syndb server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See syndb -help for a list of all commands.
package cmd
