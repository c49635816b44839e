// Package store provides storage backends for the translation relay.
//
// It holds three concerns: inbound message deduplication (the idempotency
// gate against webhook redelivery), per-sender target-language preferences,
// and the relay audit log. Backends exist for in-memory, SQLite, and
// PostgreSQL deployments.
package store

import (
	"strings"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// DedupRepo defines the interface for inbound message deduplication.
type DedupRepo interface {
	// ClaimInbound atomically records messageID as processed. It returns true
	// if this call claimed the message, false if it was already recorded.
	// Concurrent claims for the same ID resolve so exactly one caller wins.
	ClaimInbound(messageID, sender string) (bool, error)

	// SweepBefore deletes dedup records received before cutoff and returns
	// the number removed. Bounds memory/table growth for long-lived processes.
	SweepBefore(cutoff time.Time) (int64, error)
}

// PrefsRepo defines the interface for per-sender language preferences.
type PrefsRepo interface {
	// GetTargetLanguages returns the sender's saved target languages, or nil
	// if the sender has no saved preferences.
	GetTargetLanguages(sender string) ([]string, error)

	// SetTargetLanguages saves the sender's target-language list.
	SetTargetLanguages(sender string, languages []string) error
}

// RelayLogRepo defines the interface for the relay audit log.
type RelayLogRepo interface {
	// AddRelay appends one relay audit record.
	AddRelay(rec models.RelayRecord) error

	// GetRelays returns the most recent relay records, newest first.
	GetRelays(limit int) ([]models.RelayRecord, error)

	// GetStats returns counters over terminal relay states.
	GetStats() (models.RelayStats, error)
}

// Store combines all storage concerns behind one interface.
type Store interface {
	DedupRepo
	PrefsRepo
	RelayLogRepo

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" otherwise (plain file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
