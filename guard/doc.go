// Package guard decides whether a navigation to a protected route may proceed.
//
// Every check waits for the client's session to be rehydrated, reads the session once and
// resolves to exactly one terminal [Outcome]: Permitted, RedirectLogin or RedirectRoleHome.
// Checks never fail: a missing session, an unknown role or a cancelled wait all resolve to
// a redirect.
//
// # Trust model
//
// Roles come from token claims decoded without signature verification. A guard is a
// navigation convenience, not a trust boundary; the backend enforces authorization on every
// request.
//
// # What this package must NOT do
//
//   - Mutate the session. The only side effect is the "unauthorized" notification.
//   - Perform network I/O.
package guard
