// Package drivertest provides a shared conformance test and benchmark suite
// for driver.Driver implementations.
//
// The package contains:
//   - RunDriverTests: functional conformance tests covering row operations,
//     transactions, commit versioning, persistence and edge cases
//   - RunDriverBenchmarks: throughput benchmarks for the same surface
//
// Backends call these from their own test files with a factory for a fresh
// driver instance. Tests for features a backend does not advertise via
// SupportsFeature are skipped, so partial implementations (e.g. the remote
// driver, which does not support transactions) can reuse the suite unchanged.
package drivertest
