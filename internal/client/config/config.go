package config

import (
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/datasets"
)

// Config holds runtime settings for the asset-tracking CLI.
//
// Fields:
//   - ServerBaseURL: REST API root, including the /api prefix.
//   - DatabasePath: sqlite file holding the durable session.
//   - RequestTimeout: per-request deadline for backend calls.
//   - SearchDebounce, SearchMinLength: incremental search tuning.
//   - RedisAddr: optional; when set, session changes are relayed through
//     Redis so clients on other machines see them.
//   - MetricsAddr: optional listen address for /metrics and /healthz.
//   - LogLevel: debug, info, warn or error.
//   - ExportDir: where exports land when no S3 bucket is configured.
//   - S3: export bucket, JSON only.
type Config struct {
	ServerBaseURL   string
	DatabasePath    string
	RequestTimeout  time.Duration
	SearchDebounce  time.Duration
	SearchMinLength int
	RedisAddr       string
	MetricsAddr     string
	LogLevel        string
	ExportDir       string
	S3              datasets.S3Options
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000/api"
	c.DatabasePath = "assettrack.db"
	c.RequestTimeout = 10 * time.Second
	c.SearchDebounce = 500 * time.Millisecond
	c.SearchMinLength = 4
	c.LogLevel = "info"
	c.ExportDir = "exports"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
