package devserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	refreshIDSize     = 16
	refreshSecretSize = 32
)

var errMalformedRefresh = errors.New("malformed refresh token")

// refreshToken is the opaque cookie value: base64url(id || secret). Only the id and a
// hash of the secret are kept server side.
type refreshToken struct {
	id     string
	secret [refreshSecretSize]byte
}

func newRefreshToken() (refreshToken, error) {
	var raw [refreshIDSize + refreshSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return refreshToken{}, err
	}
	var t refreshToken
	t.id = base64.RawURLEncoding.EncodeToString(raw[:refreshIDSize])
	copy(t.secret[:], raw[refreshIDSize:])
	return t, nil
}

func parseRefreshToken(s string) (refreshToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != refreshIDSize+refreshSecretSize {
		return refreshToken{}, errMalformedRefresh
	}
	var t refreshToken
	t.id = base64.RawURLEncoding.EncodeToString(raw[:refreshIDSize])
	copy(t.secret[:], raw[refreshIDSize:])
	return t, nil
}

func (t refreshToken) String() string {
	id, _ := base64.RawURLEncoding.DecodeString(t.id)
	raw := make([]byte, 0, refreshIDSize+refreshSecretSize)
	raw = append(raw, id...)
	raw = append(raw, t.secret[:]...)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func (t refreshToken) hash() [32]byte {
	return sha256.Sum256(t.secret[:])
}

func (t refreshToken) matches(hash [32]byte) bool {
	h := t.hash()
	return subtle.ConstantTimeCompare(h[:], hash[:]) == 1
}
