// Package config loads runtime configuration for the asset-tracking CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string        REST API base URL
//	-d string        session database file
//	-t int           request timeout (seconds)
//	-debounce int    search debounce (milliseconds)
//	-min int         minimum query length before searching
//	-redis string    Redis address for the session relay
//	-m string        metrics listen address
//	-l string        log level
//	-o string        export directory
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds. Keys left out keep their earlier value:
//
//	{
//	  "server_base_url": "https://assets.example.com/api",
//	  "database_path": "assettrack.db",
//	  "request_timeout": "10s",
//	  "search_debounce": "500ms",
//	  "search_min_length": 4,
//	  "redis_addr": "127.0.0.1:6379",
//	  "metrics_addr": ":9100",
//	  "log_level": "info",
//	  "export_dir": "exports",
//	  "s3": {"bucket": "exports", "region": "us-east-1", "endpoint": "http://127.0.0.1:9000",
//	         "access_key": "minio", "secret_key": "minio123"}
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
