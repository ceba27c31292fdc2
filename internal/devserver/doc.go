// Package devserver is an in-memory implementation of the Boi Khata REST API for local
// development and integration tests.
//
// It serves the authentication endpoints (login with an access token in the body and a
// rotating HttpOnly refresh cookie, refresh-token, logout) and the stationery product
// endpoints with role checks. [Faults] injects 401, 403 and refresh failures so clients can
// be driven through their recovery paths.
//
// Nothing is persisted; a restart forgets every user, token and product.
package devserver
