package session

import "github.com/boikhata/khata/jwt"

// Session is a snapshot of the authenticated identity.
//
// Token is empty exactly when User is nil; the zero value is the logged-out session.
type Session struct {
	Token string
	User  *jwt.Claims
}

// LoggedIn reports whether the snapshot carries a token.
func (s Session) LoggedIn() bool {
	return s.Token != ""
}

// Clone returns a deep copy so callers never share the store's claims.
func (s Session) Clone() Session {
	out := Session{Token: s.Token}
	if s.User != nil {
		out.User = s.User.Clone()
	}
	return out
}

// Envelope pairs a session snapshot with the rehydration marker.
type Envelope struct {
	Session
	Rehydrated bool
}
