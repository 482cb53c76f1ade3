//go:build protogen

package directory

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/serenio-health/serenio/libs/grpcx"
	directoryv1 "github.com/serenio-health/serenio/protos/gen/directory/v1"
)

// GRPCProvider resolves professionals over the directory service's gRPC
// surface. Requires generated stubs; build with -tags protogen after running
// protoc (see protos/README.md).
type GRPCProvider struct {
	conn    *grpc.ClientConn
	client  directoryv1.DirectoryServiceClient
	timeout time.Duration
}

func NewGRPCProvider(ctx context.Context, target string, timeout time.Duration) (*GRPCProvider, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	conn, err := grpcx.Dial(ctx, target, grpcx.DialOptions{})
	if err != nil {
		return nil, err
	}
	return &GRPCProvider{
		conn:    conn,
		client:  directoryv1.NewDirectoryServiceClient(conn),
		timeout: timeout,
	}, nil
}

func (p *GRPCProvider) ProfessionalExists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.client.ProfessionalExists(ctx, &directoryv1.ProfessionalExistsRequest{ProfessionalId: id})
	if err != nil {
		return false, err
	}
	return resp.GetExists(), nil
}

func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}
