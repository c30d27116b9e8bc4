// Package pgstore persists validated weather readings into PostgreSQL. The
// table carries the same range CHECK constraints as the validator, so an
// invalid row is rejected by the store itself even if a validator bug lets it
// through.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/illmade-knight/go-weather-pipeline/pkg/messagepipeline"
	"github.com/illmade-knight/go-weather-pipeline/pkg/weather"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Bootstrap statements. Both are create-if-not-exists, so running them against
// an already bootstrapped database changes nothing.
const (
	createTableStmt = `CREATE TABLE IF NOT EXISTS weather_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		temperature DECIMAL(5,2) NOT NULL CHECK (temperature BETWEEN -50 AND 60),
		humidity DECIMAL(5,2) NOT NULL CHECK (humidity BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`

	createIndexStmt = `CREATE INDEX IF NOT EXISTS idx_weather_logs_timestamp ON weather_logs(timestamp)`

	insertReadingStmt = `INSERT INTO weather_logs (timestamp, temperature, humidity) VALUES ($1, $2, $3)`
)

// startupConnectRetries bounds the initial connection attempts; an unreachable
// database at startup is fatal for the process.
const startupConnectRetries = 5

// ReadingInserter is the contract for persisting one validated reading. It
// abstracts the destination store, keeping the pipeline assembly testable.
type ReadingInserter interface {
	// Insert persists a single reading. An error wrapped as unprocessable
	// marks the reading as permanently rejected by the store.
	Insert(ctx context.Context, reading *weather.Reading) error
	// Close handles any necessary cleanup of the inserter's resources.
	Close() error
}

// NewPostgresClient opens a connection pool and verifies connectivity,
// retrying a bounded number of times with backoff. The pool transparently
// re-establishes connections after transient database outages.
func NewPostgresClient(ctx context.Context, cfg *Config, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	operation := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn().Err(err).Str("host", cfg.Host).Msg("Database ping failed, will retry.")
			return err
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.WithContext(backoff.NewExponentialBackOff(), ctx), startupConnectRetries)
	if err := backoff.Retry(operation, bo); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres at %s: %w", cfg.Host, err)
	}

	logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Postgres client connected.")
	return db, nil
}

// EnsureSchema idempotently creates the weather_logs table and its timestamp
// index. It must complete before the consumer accepts traffic.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		return fmt.Errorf("create weather_logs table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexStmt); err != nil {
		return fmt.Errorf("create weather_logs index: %w", err)
	}
	return nil
}

// PostgresInserter implements ReadingInserter for the weather_logs table.
type PostgresInserter struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresInserter bootstraps the schema and returns an inserter bound to
// the given pool.
func NewPostgresInserter(ctx context.Context, db *sql.DB, logger zerolog.Logger) (*PostgresInserter, error) {
	if db == nil {
		return nil, errors.New("database handle cannot be nil")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	logger.Info().Msg("weather_logs schema ensured.")

	return &PostgresInserter{
		db:     db,
		logger: logger.With().Str("component", "PostgresInserter").Logger(),
	}, nil
}

// Insert persists one reading. A row rejected by the table's integrity
// constraints is classified unprocessable: retrying it would fail identically,
// so the message must be acknowledged and dropped. Any other failure (e.g. a
// lost connection) is transient and surfaces as a plain error, leaving the
// message unacknowledged for redelivery.
func (i *PostgresInserter) Insert(ctx context.Context, reading *weather.Reading) error {
	_, err := i.db.ExecContext(ctx, insertReadingStmt, reading.Timestamp, reading.Temperature, reading.Humidity)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pgerrcode.IsIntegrityConstraintViolation(string(pqErr.Code)) {
		i.logger.Error().Err(err).Str("constraint", pqErr.Constraint).
			Float64("temperature", reading.Temperature).
			Float64("humidity", reading.Humidity).
			Msg("Insert rejected by table constraint.")
		return messagepipeline.AsUnprocessable(fmt.Errorf("reading rejected by constraint %q: %w", pqErr.Constraint, err))
	}

	return fmt.Errorf("insert reading: %w", err)
}

// Close is a no-op; the pool's lifecycle is managed by the service that
// created it.
func (i *PostgresInserter) Close() error {
	return nil
}
