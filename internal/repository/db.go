package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options tune the database pool.
type Options struct {
	MaxConns        int
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// Open connects to the bill store. A postgres:// DSN goes through pgx;
// anything else is treated as a SQLite file path. All queries use $N
// placeholders, which both drivers accept.
func Open(dsn string, opts Options, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(opts.MaxConnLifetime)
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("repository.open", "driver", driver)
	return db, nil
}

const billsSchema = `
CREATE TABLE IF NOT EXISTS bills (
	id                TEXT PRIMARY KEY,
	source_file       TEXT NOT NULL,
	bill_number       TEXT NOT NULL DEFAULT '',
	hospital_name     TEXT NOT NULL DEFAULT '',
	patient_name      TEXT NOT NULL DEFAULT '',
	total_amount      REAL NOT NULL DEFAULT 0,
	net_amount        REAL NOT NULL DEFAULT 0,
	extraction_method TEXT NOT NULL DEFAULT '',
	ocr_confidence    REAL NOT NULL DEFAULT 0,
	raw_json          TEXT NOT NULL,
	overlay_json      TEXT NOT NULL DEFAULT '{}',
	edited_by_user    INTEGER NOT NULL DEFAULT 0,
	edited_at         TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
)`

func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, billsSchema); err != nil {
		return fmt.Errorf("ensure bills schema: %w", err)
	}
	return nil
}
