// Package store: SQLite-backed implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// ClaimInbound relies on INSERT OR IGNORE against the primary key for
// atomicity; RowsAffected distinguishes the winning claim from duplicates.
func (s *SQLiteStore) ClaimInbound(messageID, sender string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_dedup (message_id, sender, received_at) VALUES (?, ?, ?)`,
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

func (s *SQLiteStore) SweepBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM inbound_dedup WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("dedup sweep failed: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) GetTargetLanguages(sender string) ([]string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT languages FROM preferences WHERE sender = ?`, sender).Scan(&raw)
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

func (s *SQLiteStore) SetTargetLanguages(sender string, languages []string) error {
	raw, err := json.Marshal(languages)
	if err != nil {
		return fmt.Errorf("failed to encode preferences for %s: %w", sender, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO preferences (sender, languages, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(sender) DO UPDATE SET languages = excluded.languages, updated_at = excluded.updated_at`,
		sender, string(raw), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", sender, err)
	}
	return nil
}

func (s *SQLiteStore) AddRelay(rec models.RelayRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO relays (id, message_id, sender, state, source_lang, error, time) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.MessageID, rec.Sender, string(rec.State), nilIfEmpty(rec.SourceLang), nilIfEmpty(rec.Error), rec.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to insert relay record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRelays(limit int) ([]models.RelayRecord, error) {
	if limit <= 0 {
		limit = DefaultRelayLogLimit
	}
	rows, err := s.db.Query(
		`SELECT id, message_id, sender, state, source_lang, error, time FROM relays ORDER BY time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relay records: %w", err)
	}
	defer rows.Close()
	return scanRelayRecords(rows)
}

func (s *SQLiteStore) GetStats() (models.RelayStats, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM relays GROUP BY state`)
	if err != nil {
		return models.RelayStats{}, fmt.Errorf("failed to query relay stats: %w", err)
	}
	defer rows.Close()
	return scanRelayStats(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
