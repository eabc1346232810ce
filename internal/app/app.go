// Package app wires configuration into the running intelligence stack
// shared by cmd/server and cmd/worker.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadintel/internal/auth"
	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/pkg/distlock"
	"github.com/ignite/leadintel/internal/pkg/fieldcrypt"
	"github.com/ignite/leadintel/internal/pkg/httpretry"
	"github.com/ignite/leadintel/internal/pkg/logger"
	"github.com/ignite/leadintel/internal/repository/postgres"
	"github.com/ignite/leadintel/internal/service/intelligence"
	"github.com/ignite/leadintel/internal/storage"
)

// sessionCacheTTL bounds how long a resolved session is trusted without
// going back to the sessions table.
const sessionCacheTTL = 5 * time.Minute

// App holds the long-lived dependencies of a process.
type App struct {
	DB       *sql.DB
	Redis    *redis.Client
	Service  *intelligence.Service
	Sessions *auth.Manager
}

// New connects to Postgres (and Redis when configured) and builds the
// intelligence service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ConfigureLogging(cfg.Logging)

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	a := &App{DB: db}
	if cfg.Redis.URL != "" {
		rdb, err := openRedis(pingCtx, cfg.Redis.URL)
		if err != nil {
			// Locks fall back to Postgres advisory locks.
			logger.Warn("redis unavailable, using advisory locks", "error", err)
		} else {
			a.Redis = rdb
			logger.Info("connected to redis")
		}
	}

	dec, err := NewDecrypter(cfg.Crypto)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []intelligence.Option{
		intelligence.WithLocker(distlock.NewLocker(a.Redis, db, cfg.Intelligence.LockTTL(), cfg.Intelligence.LockWait())),
		intelligence.WithTopDefault(cfg.Intelligence.TopDefault),
		intelligence.WithRecomputeTimeout(cfg.Intelligence.LockWait() + cfg.Intelligence.LockTTL()),
	}
	if cfg.Archive.Enabled {
		arch, err := storage.New(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		opts = append(opts, intelligence.WithArchiver(arch))
		logger.Info("snapshot archive enabled", "type", cfg.Archive.Type)
	}

	signals := postgres.NewSignalRepo(db)
	extractor := intelligence.NewExtractor(cfg.Extraction.PainPoints, cfg.Extraction.Competitors)
	analyzer := intelligence.NewAnalyzer(intelligence.NewRenderer(nil), extractor,
		cfg.Intelligence.Location(), cfg.Intelligence.PredictionTTL())
	collector := intelligence.NewCollector(signals, dec, cfg.Intelligence.ThreadLimit, cfg.Intelligence.EventLookback())

	a.Service = intelligence.NewService(postgres.NewIntelligenceRepo(db), signals, collector, analyzer,
		cfg.Intelligence.FreshnessWindow(), opts...)
	a.Sessions = auth.NewManager(postgres.NewSessionRepo(db), sessionCacheTTL)
	return a, nil
}

// Close releases the connections held by the app.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// ConfigureLogging applies the logging section to the default logger.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.Redact())
}

// NewDecrypter prefers a local master key and falls back to the remote
// decryption service.
func NewDecrypter(cfg config.CryptoConfig) (fieldcrypt.Decrypter, error) {
	switch {
	case cfg.FieldKey != "":
		key, err := fieldcrypt.ParseKey(cfg.FieldKey)
		if err != nil {
			return nil, err
		}
		return fieldcrypt.NewKeyring(key)
	case cfg.ServiceURL != "":
		client := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, cfg.MaxRetries)
		return fieldcrypt.NewRemote(cfg.ServiceURL, cfg.ServiceToken, client), nil
	}
	return nil, fmt.Errorf("crypto: field_key or service_url is required")
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
