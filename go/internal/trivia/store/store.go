package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// ErrNotFound is returned when no snapshot exists for a code.
var ErrNotFound = errors.New("game not found")

// Record is one persisted session snapshot with the columns queried by the API.
type Record struct {
	Code      string
	Status    trivia.Status
	Winner    *trivia.PlayerRef
	Players   int
	Rounds    int
	Pot       int
	CreatedAt time.Time
	UpdatedAt time.Time
	State     json.RawMessage
}

// Session decodes the full snapshot.
func (r Record) Session() (*trivia.Session, error) {
	s, err := trivia.RestoreSession(r.State)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", r.Code, err)
	}
	return s, nil
}

// NewRecord snapshots s.
func NewRecord(s *trivia.Session) (Record, error) {
	state, err := s.Snapshot()
	if err != nil {
		return Record{}, fmt.Errorf("failed to snapshot session %s: %w", s.Code, err)
	}
	rec := Record{
		Code:      s.Code,
		Status:    s.Status,
		Players:   len(s.Players),
		Rounds:    s.RoundIndex + 1,
		Pot:       s.Pot,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		State:     state,
	}
	if s.Winner != nil {
		w := *s.Winner
		rec.Winner = &w
	}
	return rec, nil
}

// LeaderboardEntry counts wins per winner name.
type LeaderboardEntry struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Store is the durability sink for sessions plus the history queries served over REST.
type Store interface {
	trivia.SessionStore
	// Get returns the latest snapshot for code, or ErrNotFound.
	Get(ctx context.Context, code string) (*Record, error)
	// List returns up to limit snapshots, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	// Leaderboard returns up to limit winner names by wins, most first.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
