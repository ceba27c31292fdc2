// Package permission defines the closed set of account roles known to the client and the
// landing route each role is sent to after login.
//
// # Trust model
//
// Roles are read from unverified token claims. Everything in this package is a routing
// hint for the client; the backend remains the only authority on what a role may do.
//
// # Architecture boundaries
//
// This package is a pure in-memory registry with no I/O.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import khata, jwt, or session.
package permission
