package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUnavailableConstructorsKeepCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	for _, err := range []*Error{CacheUnavailable(cause), GeoQueryUnavailable(cause)} {
		wrapped := fmt.Errorf("outer: %w", err)
		if !Is(wrapped, KindUnavailable) {
			t.Fatalf("expected KindUnavailable through wrapping, got %v", GetKind(wrapped))
		}
		if !errors.Is(wrapped, cause) {
			t.Fatalf("expected cause to be reachable from %v", wrapped)
		}
		if err.HTTPStatus() != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", err.HTTPStatus())
		}
	}
}

func TestGetKindOfPlainError(t *testing.T) {
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected KindUnknown for a plain error")
	}
}
