// Package notify implements async delivery of client notifications to a sink.
//
// # Components
//
//   - [Sink]: interface for notification consumers.
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which notifications
// to emit; the client request layer and the guards do.
//
// # What this package must NOT do
//
//   - Filter or suppress notifications based on their content.
//   - Import khata or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package notify
