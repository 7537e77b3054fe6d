// Package sqlstore records hits in a SQL database. Both sqlite (modernc.org/sqlite)
// and PostgreSQL (lib/pq) are supported through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/sflowg/blockrunner/runner"
	_ "modernc.org/sqlite"
)

// Config holds the store configuration
type Config struct {
	Driver            string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	ConnectionString  string `yaml:"connection_string" validate:"required"`
	MaxOpenConns      int    `yaml:"max_open_conns" default:"10" validate:"gte=1,lte=100"`
	MaxIdleConns      int    `yaml:"max_idle_conns" default:"5" validate:"gte=0,lte=50"`
	ConnMaxLifetimeMs int    `yaml:"conn_max_lifetime_ms" default:"300000" validate:"gte=0"`
}

var _ runner.HitSink = (*Store)(nil)

// Store is a runner.HitSink writing to the hits table.
type Store struct {
	Config Config
	db     *sql.DB
	insert string
}

var schema = map[string]string{
	"sqlite": `CREATE TABLE IF NOT EXISTS hits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pipeline TEXT NOT NULL,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		captures TEXT NOT NULL,
		proxy TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	"postgres": `CREATE TABLE IF NOT EXISTS hits (
		id BIGSERIAL PRIMARY KEY,
		pipeline TEXT NOT NULL,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		captures JSONB NOT NULL,
		proxy TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

var insertQuery = map[string]string{
	"sqlite":   `INSERT INTO hits (pipeline, status, data, captures, proxy, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
	"postgres": `INSERT INTO hits (pipeline, status, data, captures, proxy, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// Open connects, verifies the connection and creates the hits table if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	ddl, ok := schema[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	slog.DebugContext(ctx, "Opening hit store",
		"driver", cfg.Driver,
		"dsn", maskConnectionString(cfg.ConnectionString))

	db, err := sql.Open(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to open connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMs) * time.Millisecond)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: failed to create hits table: %w", err)
	}

	return &Store{Config: cfg, db: db, insert: insertQuery[cfg.Driver]}, nil
}

func (s *Store) SaveHit(ctx context.Context, pipeline, status string, hit runner.HitResult) error {
	captures, err := json.Marshal(hit.Captures)
	if err != nil {
		return fmt.Errorf("sqlstore: failed to encode captures: %w", err)
	}

	var proxy sql.NullString
	if hit.Proxy != "" {
		proxy = sql.NullString{String: hit.Proxy, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, s.insert, pipeline, status, hit.Data, string(captures), proxy, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlstore: insert failed: %w", err)
	}
	return nil
}

// Hits lists the stored hits of a pipeline and status, oldest first.
func (s *Store) Hits(ctx context.Context, pipeline, status string) ([]runner.HitResult, error) {
	query := `SELECT data, captures, proxy FROM hits WHERE pipeline = ? AND status = ? ORDER BY id`
	if s.Config.Driver == "postgres" {
		query = `SELECT data, captures, proxy FROM hits WHERE pipeline = $1 AND status = $2 ORDER BY id`
	}

	rows, err := s.db.QueryContext(ctx, query, pipeline, status)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query failed: %w", err)
	}
	defer rows.Close()

	var out []runner.HitResult
	for rows.Next() {
		var (
			hit      runner.HitResult
			captures string
			proxy    sql.NullString
		)
		if err := rows.Scan(&hit.Data, &captures, &proxy); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(captures), &hit.Captures); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to decode captures: %w", err)
		}
		hit.Proxy = proxy.String
		out = append(out, hit)
	}
	return out, rows.Err()
}

// Close closes the database connection pool
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskConnectionString hides the password of URL-style connection strings.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
