package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/permission"
)

const (
	// v1 prefixed email and role with one length byte; v2 uses two.
	envelopeFormatV1      = 1
	envelopeFormatV2      = 2
	envelopeFormatCurrent = envelopeFormatV2

	flagHasUser = 1 << 0
)

// ErrCorrupt is returned by Decode for blobs it cannot read.
var ErrCorrupt = errors.New("session: corrupt persisted blob")

// Encode serializes s into the current binary format.
func Encode(s Session) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	if len(s.Token) > math.MaxUint16 {
		return nil, fmt.Errorf("session: token: %w", ErrFieldTooLong)
	}

	var buf bytes.Buffer
	buf.WriteByte(envelopeFormatCurrent)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(s.Token)

	if s.User == nil {
		buf.WriteByte(0)
		return buf.Bytes(), nil
	}
	buf.WriteByte(flagHasUser)

	if err := writeString(&buf, s.User.Email); err != nil {
		return nil, fmt.Errorf("session: email: %w", err)
	}
	if err := writeString(&buf, string(s.User.Role)); err != nil {
		return nil, fmt.Errorf("session: role: %w", err)
	}

	if err := binary.Write(&buf, binary.BigEndian, unixOrZero(s.User.IssuedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixOrZero(s.User.ExpiresAt)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode.
func Decode(data []byte) (Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Session{}, fmt.Errorf("%w: empty blob", ErrCorrupt)
	}
	var readString func(*bytes.Reader) (string, error)
	switch version {
	case envelopeFormatV1:
		readString = readShortString
	case envelopeFormatV2:
		readString = readLongString
	default:
		return Session{}, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, version)
	}

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return Session{}, corrupt(err)
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return Session{}, corrupt(err)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return Session{}, corrupt(err)
	}

	s := Session{Token: string(token)}
	if flags&flagHasUser != 0 {
		email, err := readString(reader)
		if err != nil {
			return Session{}, corrupt(err)
		}
		role, err := readString(reader)
		if err != nil {
			return Session{}, corrupt(err)
		}
		var iat, exp int64
		if err := binary.Read(reader, binary.BigEndian, &iat); err != nil {
			return Session{}, corrupt(err)
		}
		if err := binary.Read(reader, binary.BigEndian, &exp); err != nil {
			return Session{}, corrupt(err)
		}
		s.User = &jwt.Claims{
			Email:     email,
			Role:      permission.Role(role),
			IssuedAt:  timeOrZero(iat),
			ExpiresAt: timeOrZero(exp),
		}
	}

	if reader.Len() != 0 {
		return Session{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, reader.Len())
	}
	if err := validate(s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}

func validate(s Session) error {
	if (s.Token == "") != (s.User == nil) {
		return ErrInvalidSession
	}
	return nil
}

// ErrFieldTooLong is returned by Encode for a token or claim that does not fit its length
// prefix.
var ErrFieldTooLong = errors.New("field too long")

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return ErrFieldTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readLongString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// The Unix epoch itself is encoded as "absent".
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
