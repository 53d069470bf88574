// Package metadata stores small key/value settings of the local store:
// pull watermarks, the access token and the device identity.
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, v int64) error
}

const (
	KeyAccessToken = "auth/access_token"
	KeyUserName    = "auth/username"
	KeyDeviceID    = "device/id"
	// KeyOwner names the account the synced local records belong to. It
	// survives logout.
	KeyOwner       = "auth/owner"
)

// WatermarkPrefix starts the keys that hold per-table pull positions.
const WatermarkPrefix = "pull_watermark/"

// WatermarkKey is where the pull position of table is kept.
func WatermarkKey(table string) string {
	return WatermarkPrefix + table
}
