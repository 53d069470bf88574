package config

import (
	"github.com/dmitrijs2005/farmsync/internal/configx"
	"github.com/dmitrijs2005/farmsync/internal/flagx"
	"github.com/dmitrijs2005/farmsync/internal/timex"
)

// FileConfig is the on-disk form of Config. Durations accept "24h" as well
// as integer nanoseconds.
type FileConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	InMemory                    *bool          `json:"in_memory" yaml:"in_memory"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
	LogFormat                   string         `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c / -config onto config. Keys that
// are missing from the file keep their current value. A file that cannot be
// read or parsed is fatal.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	c := &FileConfig{}
	if err := configx.Load(path, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrGRPC != "" {
		config.EndpointAddrGRPC = c.EndpointAddrGRPC
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.InMemory != nil {
		config.InMemory = *c.InMemory
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		config.LogFormat = c.LogFormat
	}
}
