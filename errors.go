package khata

import (
	"errors"
	"fmt"

	"github.com/boikhata/khata/jwt"
)

var (
	// ErrUnauthenticated reports a 401 the client could not recover from by refreshing.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden reports a 403. The session is kept and no refresh is attempted.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound reports a 404.
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired reports that refresh-and-retry failed and the session was cleared.
	ErrSessionExpired = errors.New("session expired")
	// ErrNetwork reports a transport failure: no HTTP response was received.
	ErrNetwork = errors.New("network failure")
	// ErrMalformedToken reports an access token whose claims could not be decoded.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrInvalidCredentials reports a rejected login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnexpectedStatus reports any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidResponse reports a 2xx response whose body could not be decoded.
	ErrInvalidResponse = errors.New("invalid response body")
	// ErrInvalidRequest reports a request that could not be built.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrClientClosed is returned by every call made after Close.
	ErrClientClosed = errors.New("client closed")
)

var kinds = []error{
	ErrSessionExpired,
	ErrUnauthenticated,
	ErrForbidden,
	ErrNotFound,
	ErrNetwork,
	ErrMalformedToken,
	ErrInvalidCredentials,
	ErrUnexpectedStatus,
	ErrInvalidResponse,
	ErrInvalidRequest,
	ErrClientClosed,
}

// RequestError is returned by every request-layer operation. errors.Is matches both
// Kind and the wrapped cause.
type RequestError struct {
	Kind    error
	Status  int
	Method  string
	Path    string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Kind returns the taxonomy sentinel carried by err, or nil when err is not one of
// the request-layer kinds.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	var re *RequestError
	if errors.As(err, &re) && re.Kind != nil {
		return re.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
