package config

import (
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/backup"
	"github.com/dmitrijs2005/farmsync/internal/configx"
	"github.com/dmitrijs2005/farmsync/internal/flagx"
	"github.com/dmitrijs2005/farmsync/internal/timex"
)

// FileConfig is the on-disk form of Config. Intervals accept strings like
// "3s" or integer nanoseconds.
type FileConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	DatabasePath        string         `json:"database_path" yaml:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	BackoffMin          timex.Duration `json:"backoff_min" yaml:"backoff_min"`
	BackoffMax          timex.Duration `json:"backoff_max" yaml:"backoff_max"`
	PushBatchSize       int            `json:"push_batch_size" yaml:"push_batch_size"`
	PullPageSize        int            `json:"pull_page_size" yaml:"pull_page_size"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	LogFile             string         `json:"log_file" yaml:"log_file"`
	Backup              *backup.Config `json:"backup" yaml:"backup"`
}

// parseFile overlays the file named by -c / -config onto cfg. Keys missing
// from the file keep their current value. A file that cannot be read or
// parsed is fatal.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	fc := &FileConfig{}
	if err := configx.Load(path, fc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)

	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setDuration(&cfg.SyncInterval, fc.SyncInterval)
	setDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	setDuration(&cfg.BackoffMin, fc.BackoffMin)
	setDuration(&cfg.BackoffMax, fc.BackoffMax)

	if fc.PushBatchSize > 0 {
		cfg.PushBatchSize = fc.PushBatchSize
	}
	if fc.PullPageSize > 0 {
		cfg.PullPageSize = fc.PullPageSize
	}

	if b := fc.Backup; b != nil {
		setString(&cfg.Backup.Bucket, b.Bucket)
		setString(&cfg.Backup.Region, b.Region)
		setString(&cfg.Backup.Endpoint, b.Endpoint)
		setString(&cfg.Backup.AccessKey, b.AccessKey)
		setString(&cfg.Backup.SecretKey, b.SecretKey)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
