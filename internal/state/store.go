// ./internal/state/store.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/config"
)

// Store wraps the PostgreSQL connection pool. All persistence goes through
// it; nothing in this package holds package-level state.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to PostgreSQL and verifies the connection.
func Open(cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "state").Logger(),
	}
	s.logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Connected to PostgreSQL")
	return s, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database connection")
	}
}

// Ping checks connection health with a short timeout. The scheduler uses it
// as its connectivity probe before draining the intent queue.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema applies the DDL for the intent queue and the decision archive.
// Safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS offline_intents (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			function_name VARCHAR(100) NOT NULL,
			args JSONB NOT NULL DEFAULT '{}',
			status VARCHAR(20) NOT NULL DEFAULT 'queued',
			error TEXT,
			processed_at TIMESTAMPTZ,
			CONSTRAINT chk_intent_status CHECK (status IN ('queued', 'processing', 'completed', 'failed'))
		);
		CREATE INDEX IF NOT EXISTS idx_offline_intents_status_created ON offline_intents(status, created_at ASC);

		CREATE TABLE IF NOT EXISTS archived_decisions (
			id UUID PRIMARY KEY,
			decided_at TIMESTAMPTZ NOT NULL,
			kind VARCHAR(30) NOT NULL,
			trigger_name VARCHAR(50) NOT NULL,
			action TEXT NOT NULL,
			reasoning TEXT NOT NULL,
			risk_score DECIMAL(10, 4) NOT NULL,
			amount_usd DECIMAL(20, 8),
			tx_ref TEXT,
			chain VARCHAR(20) NOT NULL,
			venue VARCHAR(30),
			succeeded BOOLEAN NOT NULL,
			idempotency_key VARCHAR(100)
		);
		CREATE INDEX IF NOT EXISTS idx_archived_decisions_decided_at ON archived_decisions(decided_at DESC);
		CREATE INDEX IF NOT EXISTS idx_archived_decisions_kind ON archived_decisions(kind, decided_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	s.logger.Info().Msg("Database schema ensured")
	return nil
}

// ResetSchema drops and recreates everything. Development use only.
func (s *Store) ResetSchema(ctx context.Context) error {
	dropSQL := `
		DROP TABLE IF EXISTS offline_intents CASCADE;
		DROP TABLE IF EXISTS archived_decisions CASCADE;
	`
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return s.EnsureSchema(ctx)
}
