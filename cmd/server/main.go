package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/leadintel/internal/api"
	"github.com/ignite/leadintel/internal/app"
	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	host, port := cfg.Server.GetHost(), cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		fatal("pre-flight check failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("failed to initialize", err)
	}
	defer a.Close()

	a.Sessions.CleanupExpiredSessions(ctx, 10*time.Minute)

	if cfg.Server.DevMode {
		logger.Warn("dev mode: X-Organization-ID and default org accepted without a session")
	}
	server := api.NewServer(cfg.Server,
		api.NewIntelligenceHandlers(a.Service),
		api.NewHealthChecker(a.DB, a.Redis, cfg.Intelligence.FreshnessWindow()),
		api.NewOrgResolver(a.Sessions, cfg.Server),
	)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
