package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is the single-process backend. The mutex is the atomic
// check-and-set boundary for dedup claims; callers must not hold any claim
// across network calls, and this implementation never does.
type InMemoryStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	prefs  map[string]string // sender -> JSON-encoded language list
	relays []models.RelayRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		seen:  make(map[string]time.Time),
		prefs: make(map[string]string),
	}
}

func (s *InMemoryStore) ClaimInbound(messageID, sender string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[messageID]; ok {
		return false, nil
	}
	s.seen[messageID] = time.Now()
	return true, nil
}

func (s *InMemoryStore) SweepBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, receivedAt := range s.seen {
		if receivedAt.Before(cutoff) {
			delete(s.seen, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) GetTargetLanguages(sender string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.prefs[sender]
	if !ok {
		return nil, nil
	}
	var languages []string
	if err := json.Unmarshal([]byte(raw), &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

func (s *InMemoryStore) SetTargetLanguages(sender string, languages []string) error {
	raw, err := json.Marshal(languages)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[sender] = string(raw)
	return nil
}

func (s *InMemoryStore) AddRelay(rec models.RelayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relays = append(s.relays, rec)
	return nil
}

func (s *InMemoryStore) GetRelays(limit int) ([]models.RelayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.relays) {
		limit = len(s.relays)
	}
	out := make([]models.RelayRecord, 0, limit)
	for i := len(s.relays) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.relays[i])
	}
	return out, nil
}

func (s *InMemoryStore) GetStats() (models.RelayStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.RelayStats
	for _, rec := range s.relays {
		switch rec.State {
		case models.RelayStateDelivered:
			stats.Delivered++
		case models.RelayStateDuplicate:
			stats.Duplicates++
		case models.RelayStateDeliveryFailed:
			stats.DeliveryFailed++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
