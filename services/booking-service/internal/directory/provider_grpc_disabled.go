//go:build !protogen

package directory

import (
	"context"
	"errors"
	"time"
)

// NewGRPCProvider is unavailable without generated stubs; rebuild with
// -tags protogen to enable the gRPC transport.
func NewGRPCProvider(ctx context.Context, target string, timeout time.Duration) (Provider, error) {
	return nil, errors.New("grpc directory provider requires a -tags protogen build")
}
