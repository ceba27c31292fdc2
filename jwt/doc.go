// Package jwt decodes access-token claims on the client and issues signed tokens for the
// development backend.
//
// # Trust model
//
// [Decode] reads the payload segment only and never checks the signature. The resulting
// [Claims] are a display and routing hint: they decide which screen to show, never what
// the account is allowed to do. Authorization that matters is enforced by the backend,
// which verifies tokens with [Issuer.Verify] or its own equivalent.
package jwt
