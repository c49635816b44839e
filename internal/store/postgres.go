// Package store: PostgreSQL-backed implementation for multi-process deployments.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// ClaimInbound relies on ON CONFLICT DO NOTHING against the primary key for
// atomicity; RowsAffected distinguishes the winning claim from duplicates.
func (s *PostgresStore) ClaimInbound(messageID, sender string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO inbound_dedup (message_id, sender, received_at) VALUES ($1, $2, $3) ON CONFLICT (message_id) DO NOTHING`,
		messageID, sender, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("dedup claim failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) SweepBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM inbound_dedup WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("dedup sweep failed: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresStore) GetTargetLanguages(sender string) ([]string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT languages FROM preferences WHERE sender = $1`, sender).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences for %s: %w", sender, err)
	}
	var languages []string
	if err := json.Unmarshal([]byte(raw), &languages); err != nil {
		return nil, fmt.Errorf("failed to decode preferences for %s: %w", sender, err)
	}
	return languages, nil
}

func (s *PostgresStore) SetTargetLanguages(sender string, languages []string) error {
	raw, err := json.Marshal(languages)
	if err != nil {
		return fmt.Errorf("failed to encode preferences for %s: %w", sender, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO preferences (sender, languages, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (sender) DO UPDATE SET languages = EXCLUDED.languages, updated_at = EXCLUDED.updated_at`,
		sender, string(raw), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", sender, err)
	}
	return nil
}

func (s *PostgresStore) AddRelay(rec models.RelayRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO relays (id, message_id, sender, state, source_lang, error, time) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.MessageID, rec.Sender, string(rec.State), nilIfEmpty(rec.SourceLang), nilIfEmpty(rec.Error), rec.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to insert relay record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetRelays(limit int) ([]models.RelayRecord, error) {
	if limit <= 0 {
		limit = DefaultRelayLogLimit
	}
	rows, err := s.db.Query(
		`SELECT id, message_id, sender, state, source_lang, error, time FROM relays ORDER BY time DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relay records: %w", err)
	}
	defer rows.Close()
	return scanRelayRecords(rows)
}

func (s *PostgresStore) GetStats() (models.RelayStats, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM relays GROUP BY state`)
	if err != nil {
		return models.RelayStats{}, fmt.Errorf("failed to query relay stats: %w", err)
	}
	defer rows.Close()
	return scanRelayStats(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
