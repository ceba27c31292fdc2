// Package session owns the client's authenticated session: the access token and the
// claims decoded from it, kept in memory and written through to a durable
// [storage.Backend] so that it survives restarts.
//
// # Lifecycle
//
// [Open] starts loading the persisted session asynchronously. Until that load finishes
// the rehydration marker is false and [Store.AwaitRehydration] blocks; the marker flips
// exactly once, also when nothing was stored. Mutations go through [Store.SetSession] and
// [Store.ClearSession] only; both are atomic with respect to readers and are queued for
// write-through.
//
// # Binary encoding
//
// The persisted blob uses a small versioned binary format. Version 2 is written; version 1
// blobs are still read. Decoding rejects unknown versions, trailing bytes, and a user
// without a token. A session that cannot be encoded removes the stored blob, so a restart
// falls back to logged out rather than to an older session.
//
// # Architecture boundaries
//
// This package does NOT issue HTTP requests, refresh tokens, or make routing decisions;
// those belong to the client and guard packages.
//
// # What this package must NOT do
//
//   - Import khata or guard (no upward imports).
//   - Let a reader observe a token without its claims or claims without a token.
package session
