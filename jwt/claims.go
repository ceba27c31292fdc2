package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boikhata/khata/permission"
	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token payload cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// Claims are the payload fields of a Boi Khata access token.
type Claims struct {
	Email     string          `json:"email"`
	Role      permission.Role `json:"role"`
	IssuedAt  time.Time       `json:"iat"`
	ExpiresAt time.Time       `json:"exp"`
}

// Expired reports whether the token had expired at now. A token without exp never expires.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Clone returns a heap copy of c.
func (c Claims) Clone() *Claims {
	out := c
	return &out
}

// accessClaims is the wire form shared by Decode and Issuer.
type accessClaims struct {
	Email string          `json:"email,omitempty"`
	Role  permission.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (a *accessClaims) claims() Claims {
	out := Claims{Email: a.Email, Role: a.Role}
	if a.IssuedAt != nil {
		out.IssuedAt = a.IssuedAt.Time
	}
	if a.ExpiresAt != nil {
		out.ExpiresAt = a.ExpiresAt.Time
	}
	return out
}

// payloadClaims holds only the fields Decode reads; other registered claims may carry any
// JSON type.
type payloadClaims struct {
	Email     string           `json:"email"`
	Role      permission.Role  `json:"role"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

var segmentParser = jwt.NewParser()

// Decode extracts claims from the payload segment of token without verifying it.
//
// Decoding the same token twice yields the same claims.
func Decode(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return Claims{}, fmt.Errorf("%w: expected three segments", ErrMalformedToken)
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var wire payloadClaims
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	out := Claims{Email: wire.Email, Role: wire.Role}
	if wire.IssuedAt != nil {
		out.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		out.ExpiresAt = wire.ExpiresAt.Time
	}
	return out, nil
}
