package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/assettrack/internal/client/datasets"
	"github.com/dmitrijs2005/assettrack/internal/flagx"
	"github.com/dmitrijs2005/assettrack/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell a missing key apart from a zero value.
type JsonConfig struct {
	ServerBaseURL   *string             `json:"server_base_url"`
	DatabasePath    *string             `json:"database_path"`
	RequestTimeout  *timex.Duration     `json:"request_timeout"`
	SearchDebounce  *timex.Duration     `json:"search_debounce"`
	SearchMinLength *int                `json:"search_min_length"`
	RedisAddr       *string             `json:"redis_addr"`
	MetricsAddr     *string             `json:"metrics_addr"`
	LogLevel        *string             `json:"log_level"`
	ExportDir       *string             `json:"export_dir"`
	S3              *datasets.S3Options `json:"s3"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson overlays Config with values from the JSON file named by -c or
// -config. Nothing happens when neither flag is given. Read and decode
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	set(&cfg.ServerBaseURL, jc.ServerBaseURL)
	set(&cfg.DatabasePath, jc.DatabasePath)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SearchDebounce != nil {
		cfg.SearchDebounce = jc.SearchDebounce.Duration
	}
	set(&cfg.SearchMinLength, jc.SearchMinLength)
	set(&cfg.RedisAddr, jc.RedisAddr)
	set(&cfg.MetricsAddr, jc.MetricsAddr)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.ExportDir, jc.ExportDir)
	set(&cfg.S3, jc.S3)
}
