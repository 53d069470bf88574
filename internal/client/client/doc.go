// Package client is the gRPC transport of the farmsync client.
//
// GRPCClient talks to the sync server: Register, Login and Ping for the
// account and connectivity, Push and Pull for record exchange. It satisfies
// syncer.Remote, so the sync engine never sees gRPC types.
//
// Every call runs under a per-request timeout and carries the access token
// obtained by Login (or restored with SetAccessToken) in the request
// metadata. Status codes are mapped to the sentinel errors in package common:
// Unauthenticated to common.ErrUnauthorized, Unavailable and
// DeadlineExceeded to common.ErrUnavailable.
//
// A GRPCClient is safe for concurrent use.
package client
