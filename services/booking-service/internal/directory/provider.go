// Package directory resolves professional identifiers against the directory
// service. Booking only needs an existence check, so the provider surface is
// a single method; HTTP is the default transport and gRPC is available behind
// the protogen build tag.
package directory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider answers whether a professional exists in the directory.
type Provider interface {
	ProfessionalExists(ctx context.Context, id string) (bool, error)
}

type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider targets the directory service's REST surface. timeout
// bounds each lookup; the booking handler treats provider failure as a
// retryable outage, never as a conflict.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *HTTPProvider) ProfessionalExists(ctx context.Context, id string) (bool, error) {
	url := p.baseURL + "/api/v1/professionals/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("directory lookup: unexpected status %d", resp.StatusCode)
	}
}
