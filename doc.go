// Package khata is a client for the Boi Khata shop backend that keeps an
// authenticated session alive across restarts.
//
// A [Client] owns a persisted session (token plus decoded user claims), waits for
// that session to be rehydrated from storage before any request reads it, attaches
// the access token to outbound calls, and transparently refreshes and retries once
// when the backend answers 401. Route guards built on top of the client live in the
// guard package.
//
// Client methods are safe to call from multiple goroutines after construction through
// [Builder.Build].
//
// # Architecture boundaries
//
// khata is the public surface. It exposes [Client], [Builder], [Config], the error
// taxonomy, notifications and metrics. Session persistence lives in the session and
// storage packages; notification buffering lives under internal/.
//
// # What this package must NOT do
//
//   - Verify token signatures. Claims are decoded for routing decisions only; the
//     backend remains the authority on every request.
//   - Refresh more than once per request, or refresh on 403.
//   - Import the guard or catalog packages (they import khata).
package khata
