package client

import (
	"time"

	"google.golang.org/grpc"
)

const DefaultRequestTimeout = 10 * time.Second

type Option func(*GRPCClient)

// WithRequestTimeout bounds every call. Zero or negative disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *GRPCClient) { c.requestTimeout = d }
}

// WithDeviceID sends id with every request.
func WithDeviceID(id string) Option {
	return func(c *GRPCClient) { c.deviceID = id }
}

// WithDialOptions adds options to the underlying grpc.NewClient call.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}
