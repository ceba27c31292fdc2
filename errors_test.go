package khata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRequestErrorMatchesKindAndCause(t *testing.T) {
	err := error(&RequestError{
		Kind:    ErrSessionExpired,
		Status:  401,
		Method:  "GET",
		Path:    "/stationary-product/products",
		Message: "jwt expired",
		Err:     context.DeadlineExceeded,
	})
	wrapped := fmt.Errorf("list products: %w", err)

	if !errors.Is(wrapped, ErrSessionExpired) {
		t.Fatal("expected kind to match")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatal("expected cause to match")
	}
	if errors.Is(wrapped, ErrForbidden) {
		t.Fatal("unexpected kind match")
	}
	if Kind(wrapped) != ErrSessionExpired {
		t.Fatalf("unexpected kind %v", Kind(wrapped))
	}
	if StatusCode(wrapped) != 401 {
		t.Fatalf("unexpected status %d", StatusCode(wrapped))
	}

	msg := err.Error()
	for _, part := range []string{"GET", "/stationary-product/products", "session expired", "401", "jwt expired"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("error %q is missing %q", msg, part)
		}
	}
}

func TestKindOfPlainErrors(t *testing.T) {
	if Kind(nil) != nil {
		t.Fatal("nil has no kind")
	}
	if Kind(errors.New("boom")) != nil {
		t.Fatal("foreign errors have no kind")
	}
	if Kind(fmt.Errorf("wrap: %w", ErrNetwork)) != ErrNetwork {
		t.Fatal("expected sentinel kind through wrapping")
	}
}
