package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/assettrack/internal/client/cli"
	"github.com/dmitrijs2005/assettrack/internal/client/config"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/dmitrijs2005/assettrack/internal/metrics"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := logging.NewText(os.Stderr, level)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.NewServer(cfg.MetricsAddr, m).Run(ctx); err != nil {
				logger.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	app, err := cli.NewApp(ctx, cfg, logger, m)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
