// Package util provides utility components for database implementations
// that satisfy the driver.Driver interface.
//
// The package contains:
//   - functions: seed generation and a seeded FNV-1a string hash, used to map
//     string identifiers (e.g. lock names) onto the uint64 primary-key space
//   - statistics: a SizeHistogram for tracking row payload size distribution
//     and distribution-quality metrics for shard balance reporting
//
// The components here are backend-agnostic: any driver.Driver implementation
// can use them for its GetInfo reporting.
package util
