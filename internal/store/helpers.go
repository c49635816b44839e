package store

import (
	"database/sql"
	"fmt"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// DefaultRelayLogLimit bounds relay log queries when no limit is given.
const DefaultRelayLogLimit = 100

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanRelayRecords scans relay audit rows shared by the SQL backends.
func scanRelayRecords(rows *sql.Rows) ([]models.RelayRecord, error) {
	var records []models.RelayRecord
	for rows.Next() {
		var rec models.RelayRecord
		var state string
		var sourceLang, errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.MessageID, &rec.Sender, &state, &sourceLang, &errText, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan relay record failed: %w", err)
		}
		rec.State = models.RelayState(state)
		rec.SourceLang = sourceLang.String
		rec.Error = errText.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relay record rows iteration failed: %w", err)
	}
	return records, nil
}

// scanRelayStats folds state counts into RelayStats.
func scanRelayStats(rows *sql.Rows) (models.RelayStats, error) {
	var stats models.RelayStats
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return stats, fmt.Errorf("scan relay stats failed: %w", err)
		}
		switch models.RelayState(state) {
		case models.RelayStateDelivered:
			stats.Delivered = count
		case models.RelayStateDuplicate:
			stats.Duplicates = count
		case models.RelayStateDeliveryFailed:
			stats.DeliveryFailed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("relay stats rows iteration failed: %w", err)
	}
	return stats, nil
}
