package booking

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindValidation, http.StatusBadRequest},
		{KindQuotaExceeded, http.StatusBadRequest},
		{KindSlotConflict, http.StatusBadRequest},
		{KindAlreadyCancelled, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindServiceUnavailable, http.StatusServiceUnavailable},
		{Kind("something-else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.kind); got != tc.want {
			t.Fatalf("HTTPStatus(%q) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("booking failed: %w", NewError(KindQuotaExceeded, "limit reached"))
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindQuotaExceeded {
		t.Fatalf("KindOf(wrapped) = %q, %v", kind, ok)
	}

	kind, ok = KindOf(context.DeadlineExceeded)
	if !ok || kind != KindServiceUnavailable {
		t.Fatalf("KindOf(deadline) = %q, %v", kind, ok)
	}

	if _, ok := KindOf(fmt.Errorf("plain")); ok {
		t.Fatal("plain error should not map to a kind")
	}
}
