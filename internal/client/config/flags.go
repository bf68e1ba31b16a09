package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-t", "-debounce", "-min", "-redis", "-m", "-l", "-o"}

// parseFlags populates Config fields from command-line flags. Arguments
// meant for other layers (such as -c) are filtered out first with
// flagx.FilterArgs. Invalid values panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "REST API base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "session database file")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	debounce := fs.Int("debounce", int(cfg.SearchDebounce.Milliseconds()), "search debounce (in milliseconds)")
	fs.IntVar(&cfg.SearchMinLength, "min", cfg.SearchMinLength, "minimum query length before searching")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the session relay")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.ExportDir, "o", cfg.ExportDir, "export directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.SearchDebounce = time.Duration(*debounce) * time.Millisecond
}
