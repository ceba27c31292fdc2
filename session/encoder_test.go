package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/permission"
)

func testClaims() jwt.Claims {
	return jwt.Claims{
		Email:     "a@b.com",
		Role:      permission.RoleUser,
		IssuedAt:  time.Unix(1000, 0),
		ExpiresAt: time.Unix(2000, 0),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := testClaims()
	in := Session{Token: strings.Repeat("t", 700), User: &c}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[0] != envelopeFormatCurrent {
		t.Fatalf("version byte = %d", data[0])
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token != in.Token {
		t.Fatal("token mismatch")
	}
	if out.User == nil || out.User.Email != c.Email || out.User.Role != c.Role {
		t.Fatalf("user mismatch: %+v", out.User)
	}
	if out.User.IssuedAt.Unix() != 1000 || out.User.ExpiresAt.Unix() != 2000 {
		t.Fatalf("timestamps mismatch: %+v", out.User)
	}
}

func TestDecodeReadsVersionOne(t *testing.T) {
	blob := []byte{envelopeFormatV1, 0, 3, 't', 'o', 'k', flagHasUser, 7}
	blob = append(blob, "a@b.com"...)
	blob = append(blob, 4)
	blob = append(blob, "user"...)
	blob = append(blob, 0, 0, 0, 0, 0, 0, 0x03, 0xE8, 0, 0, 0, 0, 0, 0, 0x07, 0xD0)

	out, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token != "tok" || out.User == nil || out.User.Email != "a@b.com" || out.User.Role != permission.RoleUser {
		t.Fatalf("unexpected session %+v", out)
	}
	if out.User.IssuedAt.Unix() != 1000 || out.User.ExpiresAt.Unix() != 2000 {
		t.Fatalf("timestamps mismatch: %+v", out.User)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	c := testClaims()
	c.Role = permission.Role(strings.Repeat("r", 70000))
	if _, err := Encode(Session{Token: "tok", User: &c}); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestEncodeLoggedOut(t *testing.T) {
	data, err := Encode(Session{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LoggedIn() || out.User != nil {
		t.Fatalf("expected logged-out session, got %+v", out)
	}
}

func TestEncodeRejectsHalfSession(t *testing.T) {
	c := testClaims()
	if _, err := Encode(Session{User: &c}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for user without token, got %v", err)
	}
	if _, err := Encode(Session{Token: "tok"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for token without user, got %v", err)
	}
}

func TestDecodeRejectsCorruptBlobs(t *testing.T) {
	c := testClaims()
	good, err := Encode(Session{Token: "tok", User: &c})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"empty":            nil,
		"unknown version":  {99},
		"truncated token":  {envelopeFormatV1, 0, 10, 'a'},
		"truncated claims": good[:len(good)-3],
		"trailing bytes":   append(append([]byte{}, good...), 0xFF),
		"user no token":    {envelopeFormatV1, 0, 0, flagHasUser, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		"token no user":    {envelopeFormatV1, 0, 1, 'x', 0},
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(blob); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func FuzzDecode(f *testing.F) {
	c := testClaims()
	seed, _ := Encode(Session{Token: "tok", User: &c})
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{envelopeFormatV1, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if s.LoggedIn() != (s.User != nil) {
			t.Fatalf("decoded half session %+v", s)
		}
	})
}
