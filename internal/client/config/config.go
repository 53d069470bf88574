package config

import (
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/backup"
)

// Config holds runtime settings for the farmsync client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the sync server gRPC endpoint.
//   - DatabasePath: the local SQLite store.
//   - OnlineCheckInterval: how often the shell probes server reachability.
//   - SyncInterval: period of background sync cycles; zero disables them.
//   - RequestTimeout: bound for every remote call.
//   - BackoffMin / BackoffMax: retry delays after a failed sync cycle.
//   - PushBatchSize / PullPageSize: records per push call and per pull page.
//   - LogLevel / LogFile: the client logs to a rotated file, not the terminal.
//   - Backup: object storage for snapshots of the local store.
type Config struct {
	ServerEndpointAddr  string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	RequestTimeout      time.Duration
	BackoffMin          time.Duration
	BackoffMax          time.Duration
	PushBatchSize       int
	PullPageSize        int
	LogLevel            string
	LogFile             string
	Backup              backup.Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "data/farmsync.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.BackoffMin = time.Second
	c.BackoffMax = 5 * time.Minute
	c.PushBatchSize = 100
	c.PullPageSize = 200
	c.LogLevel = "info"
	c.LogFile = "data/farmsync.log"
	c.Backup = backup.Config{Region: "us-east-1"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
