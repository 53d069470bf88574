package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/farmsync/internal/common"
	pb "github.com/dmitrijs2005/farmsync/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	var creds pb.Credentials
	if err := pb.FromStruct(req, &creds); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Info(ctx, "Registration request", "username", creds.Username)

	u, err := s.users.Register(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", u.UserName, "id", u.ID)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var creds pb.Credentials
	if err := pb.FromStruct(req, &creds); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	token, err := s.users.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, pb.LoginResponse{AccessToken: token})
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, pb.PingResponse{Status: "OK"})
}

func (s *GRPCServer) Push(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	var in pb.PushRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	acks, err := s.sync.Push(ctx, userID, in.Table, in.Records)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, pb.PushResponse{Acks: acks})
}

func (s *GRPCServer) Pull(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	var in pb.PullRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.sync.Pull(ctx, userID, in.Table, in.Since, in.Limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, resp)
}

func (s *GRPCServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := pb.ToStruct(v)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// toStatus maps service errors to gRPC codes. Unknown errors are logged and
// reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrConstraint):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
