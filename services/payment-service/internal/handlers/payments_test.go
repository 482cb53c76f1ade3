package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(cfg Config) *httptest.Server {
	h := NewPaymentHandler(slog.New(slog.DiscardHandler), nil, nil, cfg)
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func TestCreateCheckoutRequiresIdentity(t *testing.T) {
	srv := newTestServer(Config{SecretKey: "sk_test_x"})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/payments/checkout", "application/json", strings.NewReader(`{"appointmentId":"a1"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateCheckoutUnconfigured(t *testing.T) {
	srv := newTestServer(Config{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/payments/checkout", strings.NewReader(`{"appointmentId":"a1"}`))
	req.Header.Set(userIDHeader, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestCreateCheckoutRejectsBadBody(t *testing.T) {
	srv := newTestServer(Config{SecretKey: "sk_test_x"})
	defer srv.Close()

	for _, body := range []string{`{"appointmentId":`, `{}`} {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/payments/checkout", strings.NewReader(body))
		req.Header.Set(userIDHeader, "user-1")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestWebhookRequiresSignature(t *testing.T) {
	srv := newTestServer(Config{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/payments/webhook/stripe", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	srv := newTestServer(Config{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"})
	defer srv.Close()

	payload := `{"id":"evt_1","type":"checkout.session.completed"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/payments/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookUnconfigured(t *testing.T) {
	srv := newTestServer(Config{SecretKey: "sk_test_x"})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/payments/webhook/stripe", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}
