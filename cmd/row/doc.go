// Package row implements the client commands for working with rows on a
// running syndb server: insert, insertIfAbsent, update, fetch, del, scan and
// info, plus a perf subcommand that benchmarks the server over the configured
// transport and serializer.
//
// All commands share the RPC connection flags (see util.SetupRPCClientFlags)
// and the --database flag selecting the target database ID.
package row
