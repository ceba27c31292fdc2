// Package storage provides the durable key-value backends that hold persisted client
// state between process runs.
//
// # Backends
//
//   - [Memory]: in-process map for tests and throwaway runs.
//   - [File]: one file per key under a directory; the default for the CLI.
//   - [Redis]: shared state in Redis for multi-host consoles.
//
// # Architecture boundaries
//
// This package moves opaque byte blobs. It does NOT interpret them; encoding belongs to
// the session and catalog packages.
//
// # What this package must NOT do
//
//   - Import khata, session, or catalog.
//   - Return partially written values: a Save either replaces the value or fails.
package storage
