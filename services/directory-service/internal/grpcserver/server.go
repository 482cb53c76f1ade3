//go:build protogen

// Package grpcserver serves the directory lookup used by booking when the
// gRPC transport is enabled. Requires generated stubs (-tags protogen).
package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	directoryv1 "github.com/serenio-health/serenio/protos/gen/directory/v1"
	"github.com/serenio-health/serenio/services/directory-service/internal/storage"
)

type server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	directoryv1.RegisterDirectoryServiceServer(grpcServer, &server{repo: repo})
}

func (s *server) ProfessionalExists(ctx context.Context, req *directoryv1.ProfessionalExistsRequest) (*directoryv1.ProfessionalExistsResponse, error) {
	if req.GetProfessionalId() == "" {
		return nil, status.Error(codes.InvalidArgument, "professional_id is required")
	}
	exists, err := s.repo.Exists(ctx, req.GetProfessionalId())
	if err != nil {
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	return &directoryv1.ProfessionalExistsResponse{Exists: exists}, nil
}

func (s *server) GetProfessional(ctx context.Context, req *directoryv1.GetProfessionalRequest) (*directoryv1.GetProfessionalResponse, error) {
	if req.GetProfessionalId() == "" {
		return nil, status.Error(codes.InvalidArgument, "professional_id is required")
	}
	p, err := s.repo.Get(ctx, req.GetProfessionalId())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "professional not found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	return &directoryv1.GetProfessionalResponse{
		Professional: &directoryv1.Professional{
			Id:             p.ID,
			Name:           p.Name,
			Specialization: p.Specialization,
			Rating:         p.Rating,
			Reviews:        int32(p.Reviews),
		},
	}, nil
}
