package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer() *httptest.Server {
	h := NewProfessionalHandler(slog.New(slog.DiscardHandler), nil)
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func postCreate(t *testing.T, srv *httptest.Server, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/professionals", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func TestCreateRequiresAdminRole(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	for _, role := range []string{"", "User", "Professional"} {
		resp := postCreate(t, srv, role, `{"name":"Dr. A","specialization":"Anxiety"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("role %q: status = %d, want 403", role, resp.StatusCode)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"missing name", `{"specialization":"Anxiety"}`},
		{"missing specialization", `{"name":"Dr. A"}`},
		{"blank name", `{"name":"   ","specialization":"Anxiety"}`},
		{"rating too high", `{"name":"Dr. A","specialization":"Anxiety","rating":5.5}`},
		{"rating negative", `{"name":"Dr. A","specialization":"Anxiety","rating":-1}`},
	}
	for _, tc := range cases {
		resp := postCreate(t, srv, "Admin", tc.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}
