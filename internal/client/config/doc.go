// Package config loads runtime configuration for the farmsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	server_endpoint_addr: 127.0.0.1:50051
//	database_path: data/farmsync.db
//	sync_interval: 30s
//	request_timeout: 10s
//	backoff_min: 1s
//	backoff_max: 5m
//	backup:
//	  bucket: farm-backups
//	  endpoint: http://127.0.0.1:9000
//
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
package config
