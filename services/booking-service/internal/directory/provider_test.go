package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/professionals/pro-1":
			w.WriteHeader(http.StatusOK)
		case "/api/v1/professionals/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 2*time.Second)
	ctx := context.Background()

	ok, err := p.ProfessionalExists(ctx, "pro-1")
	if err != nil {
		t.Fatalf("lookup pro-1: %v", err)
	}
	if !ok {
		t.Fatal("pro-1 should exist")
	}

	ok, err = p.ProfessionalExists(ctx, "missing")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if ok {
		t.Fatal("missing professional reported as existing")
	}

	if _, err := p.ProfessionalExists(ctx, "boom"); err == nil {
		t.Fatal("5xx from directory should surface as an error")
	}
}

func TestHTTPProviderUnreachable(t *testing.T) {
	p := NewHTTPProvider("http://127.0.0.1:1", 500*time.Millisecond)
	if _, err := p.ProfessionalExists(context.Background(), "pro-1"); err == nil {
		t.Fatal("unreachable directory should surface as an error")
	}
}
