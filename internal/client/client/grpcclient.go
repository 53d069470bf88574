package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/common"
	pb "github.com/dmitrijs2005/farmsync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type GRPCClient struct {
	endpointURL    string
	requestTimeout time.Duration
	deviceID       string
	dialOpts       []grpc.DialOption

	conn   *grpc.ClientConn
	client pb.SyncServiceClient

	mu          sync.RWMutex
	accessToken string
}

func withHeader(ctx context.Context, key, value string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(key, value)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) unaryInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.AccessToken(); token != "" {
		ctx = withHeader(ctx, common.AccessTokenHeaderName, token)
	}
	if s.deviceID != "" {
		ctx = withHeader(ctx, common.DeviceIDHeaderName, s.deviceID)
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient creates a client for endpointURL. No connection is made
// until the first call.
func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, requestTimeout: DefaultRequestTimeout}
	for _, o := range opts {
		o(c)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.unaryInterceptor),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(c.endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewSyncServiceClient(conn)
	return c, nil
}

// AccessToken returns the token sent with each request.
func (s *GRPCClient) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken replaces the token, for example with one restored from
// local metadata. An empty token logs out.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) Register(ctx context.Context, userName, password string) error {
	req, err := pb.ToStruct(pb.Credentials{Username: userName, Password: password})
	if err != nil {
		return err
	}

	if _, err := s.client.Register(ctx, req); err != nil {
		return s.mapError(err)
	}
	return nil
}

// Login authenticates and keeps the returned access token for later calls.
func (s *GRPCClient) Login(ctx context.Context, userName, password string) (string, error) {
	req, err := pb.ToStruct(pb.Credentials{Username: userName, Password: password})
	if err != nil {
		return "", err
	}

	out, err := s.client.Login(ctx, req)
	if err != nil {
		return "", s.mapError(err)
	}

	var resp pb.LoginResponse
	if err := pb.FromStruct(out, &resp); err != nil {
		return "", err
	}

	s.SetAccessToken(resp.AccessToken)
	return resp.AccessToken, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	out, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}

	var resp pb.PingResponse
	if err := pb.FromStruct(out, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Push(ctx context.Context, table models.Table, batch []models.Record) ([]models.Ack, error) {
	records := make([]pb.Record, 0, len(batch))
	for _, r := range batch {
		records = append(records, toWire(r))
	}

	req, err := pb.ToStruct(pb.PushRequest{Table: string(table), Records: records})
	if err != nil {
		return nil, err
	}

	out, err := s.client.Push(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	var resp pb.PushResponse
	if err := pb.FromStruct(out, &resp); err != nil {
		return nil, err
	}

	acks := make([]models.Ack, 0, len(resp.Acks))
	for _, a := range resp.Acks {
		acks = append(acks, models.Ack{
			ID:             a.ID,
			Accepted:       a.Accepted,
			RemoteModified: a.RemoteModified,
			Version:        a.Version,
			Reason:         a.Reason,
		})
	}
	return acks, nil
}

func (s *GRPCClient) Pull(ctx context.Context, table models.Table, since int64, limit int) (*models.PullPage, error) {
	req, err := pb.ToStruct(pb.PullRequest{Table: string(table), Since: since, Limit: limit})
	if err != nil {
		return nil, err
	}

	out, err := s.client.Pull(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	var resp pb.PullResponse
	if err := pb.FromStruct(out, &resp); err != nil {
		return nil, err
	}

	page := &models.PullPage{
		Records:   make([]models.RemoteRecord, 0, len(resp.Records)),
		Watermark: resp.Watermark,
		HasMore:   resp.HasMore,
	}
	for _, rr := range resp.Records {
		page.Records = append(page.Records, models.RemoteRecord{
			Record:         fromWire(rr.Record),
			RemoteModified: rr.RemoteModified,
			Version:        rr.Version,
		})
	}
	return page, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.ErrUnavailable
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrAlreadyExists)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrConstraint)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func toWire(r models.Record) pb.Record {
	fields := map[string]any(r.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	return pb.Record{
		ID:           r.ID,
		Fields:       fields,
		IsDeleted:    r.IsDeleted,
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastModified: r.LastModified,
	}
}

func fromWire(r pb.Record) models.Record {
	fields := models.Fields(r.Fields)
	if fields == nil {
		fields = models.Fields{}
	}
	return models.Record{
		ID:           r.ID,
		Fields:       fields,
		IsDeleted:    r.IsDeleted,
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastModified: r.LastModified,
	}
}
