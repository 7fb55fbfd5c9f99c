package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// MemoryStore keeps snapshots in process. It is the default when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, s *trivia.Session) error {
	rec, err := NewRecord(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Code] = rec
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Code < records[j].Code
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	wins := make(map[string]int)
	m.mu.RLock()
	for _, rec := range m.records {
		if rec.Winner != nil {
			wins[rec.Winner.Name]++
		}
	}
	m.mu.RUnlock()

	return rankWins(wins, limit), nil
}

func rankWins(wins map[string]int, limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(wins))
	for name, n := range wins {
		entries = append(entries, LeaderboardEntry{Name: name, Wins: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wins == entries[j].Wins {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Wins > entries[j].Wins
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
