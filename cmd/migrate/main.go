package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/ignite/leadintel/internal/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "migrations", "directory holding *.sql files")
	listOnly := flag.Bool("list", false, "list applied migrations and exit")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping failed", "error", err)
		os.Exit(1)
	}

	if *listOnly {
		names, err := appliedMigrations(ctx, db)
		if err != nil {
			logger.Error("list failed", "error", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(" ", n)
		}
		fmt.Printf("Total: %d applied\n", len(names))
		return
	}

	files, err := migrationFiles(*dir)
	if err != nil {
		logger.Error("read migrations failed", "error", err)
		os.Exit(1)
	}
	applied, err := migrate(ctx, db, files)
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "applied", applied, "total", len(files))
}

type migration struct {
	name string
	sql  string
}

// migrationFiles returns the non-empty *.sql files of dir in name order.
func migrationFiles(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []migration
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", n, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{name: n, sql: string(data)})
	}
	return out, nil
}

const createTracking = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrate applies each file not yet recorded in schema_migrations, each in
// its own transaction, and stops at the first failure.
func migrate(ctx context.Context, db *sql.DB, files []migration) (int, error) {
	if _, err := db.ExecContext(ctx, createTracking); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := appliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(done))
	for _, n := range done {
		seen[n] = true
	}

	applied := 0
	for _, m := range files {
		if seen[m.name] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}
		logger.Info("applied migration", "name", m.name)
		applied++
	}
	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("apply %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
		return fmt.Errorf("record %s: %w", m.name, err)
	}
	return tx.Commit()
}

func appliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM schema_migrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
