package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/leadintel/internal/app"
	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/pkg/logger"
	"github.com/ignite/leadintel/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	once := flag.Bool("once", false, "refresh one batch and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	refresher := worker.NewRefresher(a.Service, cfg.Worker)

	if *once {
		refreshed, failed := refresher.RunOnce(context.Background())
		logger.Info("refresh complete", "refreshed", refreshed, "failed", failed)
		if failed > 0 {
			a.Close()
			os.Exit(1)
		}
		return
	}

	refresher.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	refresher.Stop()
}
