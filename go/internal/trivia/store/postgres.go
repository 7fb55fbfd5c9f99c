package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/knockout/go/internal/sqlutil"
	"github.com/mcdev12/knockout/go/internal/trivia"
)

const schema = `
CREATE TABLE IF NOT EXISTS trivia_sessions (
	code        TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	winner      JSONB,
	players     INTEGER NOT NULL DEFAULT 0,
	rounds      INTEGER NOT NULL DEFAULT 0,
	pot         INTEGER NOT NULL DEFAULT 0,
	state       JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trivia_sessions_created_at_idx ON trivia_sessions (created_at DESC);
`

const upsertSession = `
INSERT INTO trivia_sessions (code, status, winner, players, rounds, pot, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO UPDATE SET
	status = EXCLUDED.status,
	winner = EXCLUDED.winner,
	players = EXCLUDED.players,
	rounds = EXCLUDED.rounds,
	pot = EXCLUDED.pot,
	state = EXCLUDED.state,
	updated_at = EXCLUDED.updated_at
WHERE trivia_sessions.updated_at <= EXCLUDED.updated_at`

const selectColumns = `code, status, winner, players, rounds, pot, state, created_at, updated_at`

// PostgresStore persists snapshots in the trivia_sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create trivia_sessions schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Save(ctx context.Context, s *trivia.Session) error {
	rec, err := NewRecord(s)
	if err != nil {
		return err
	}
	winner, err := sqlutil.ToNullRawMessage(rec.Winner)
	if err != nil {
		return fmt.Errorf("failed to encode winner: %w", err)
	}

	_, err = p.db.ExecContext(ctx, upsertSession,
		rec.Code,
		string(rec.Status),
		winner,
		rec.Players,
		rec.Rounds,
		rec.Pot,
		string(rec.State),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.Code, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, code string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM trivia_sessions WHERE code = $1`, code)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", code, err)
	}
	return rec, nil
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM trivia_sessions ORDER BY created_at DESC, code LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return records, nil
}

func (p *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT winner->>'name' AS name, COUNT(*) AS wins
		FROM trivia_sessions
		WHERE winner IS NOT NULL
		GROUP BY name
		ORDER BY wins DESC, name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Wins); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec    Record
		status string
		winner pqtype.NullRawMessage
		state  []byte
	)
	if err := row.Scan(
		&rec.Code,
		&status,
		&winner,
		&rec.Players,
		&rec.Rounds,
		&rec.Pot,
		&state,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = trivia.Status(status)
	rec.State = state
	var ref trivia.PlayerRef
	ok, err := sqlutil.FromNullRawMessage(winner, &ref)
	if err != nil {
		return nil, fmt.Errorf("failed to decode winner: %w", err)
	}
	if ok {
		rec.Winner = &ref
	}
	return &rec, nil
}
