// Package grpc exposes the user and sync services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/farmsync/internal/logging"
	pb "github.com/dmitrijs2005/farmsync/internal/proto"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
	"google.golang.org/grpc"
)

// UserService is implemented by services.UserService.
type UserService interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (string, error)
}

// SyncService is implemented by services.SyncService.
type SyncService interface {
	Push(ctx context.Context, userID, table string, batch []pb.Record) ([]pb.Ack, error)
	Pull(ctx context.Context, userID, table string, since int64, limit int) (*pb.PullResponse, error)
}

type GRPCServer struct {
	pb.UnimplementedSyncServiceServer
	address   string
	users     UserService
	sync      SyncService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us UserService, ss SyncService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		sync:      ss,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with the interceptors and this service
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	}, opts...)

	srv := grpc.NewServer(opts...)
	pb.RegisterSyncServiceServer(srv, s)
	return srv
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}
