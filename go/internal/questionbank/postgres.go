package questionbank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/knockout/go/internal/sqlutil"
	"github.com/mcdev12/knockout/go/internal/trivia"
)

// Schema creates the question table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS trivia_questions (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	body           TEXT NOT NULL,
	time_ms        BIGINT NOT NULL,
	options        JSONB,
	correct_index  INTEGER,
	correct_value  DOUBLE PRECISION,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRepository stores questions in trivia_questions.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create trivia_questions schema: %w", err)
	}
	return nil
}

// questionRow is the column form of a question.
type questionRow struct {
	ID           string
	Kind         string
	Body         string
	TimeMs       int64
	Options      pqtype.NullRawMessage
	CorrectIndex sql.NullInt32
	CorrectValue sql.NullFloat64
}

func toRow(q trivia.Question) (questionRow, error) {
	row := questionRow{ID: q.ID, Kind: string(q.Kind), Body: q.Body, TimeMs: q.TimeMs}
	if q.MCQ != nil {
		opts, err := sqlutil.ToNullRawMessage(q.MCQ.Options)
		if err != nil {
			return questionRow{}, fmt.Errorf("failed to encode options: %w", err)
		}
		idx := q.MCQ.CorrectIndex
		row.Options = opts
		row.CorrectIndex = sqlutil.ToSqlInt32(&idx)
	}
	if q.Estimate != nil {
		v := q.Estimate.CorrectValue
		row.CorrectValue = sqlutil.ToSqlFloat64(&v)
	}
	return row, nil
}

func (row questionRow) toModel() (trivia.Question, error) {
	q := trivia.Question{
		ID:     row.ID,
		Kind:   trivia.QuestionKind(row.Kind),
		Body:   row.Body,
		TimeMs: row.TimeMs,
	}
	switch q.Kind {
	case trivia.KindMCQ:
		var options []string
		if _, err := sqlutil.FromNullRawMessage(row.Options, &options); err != nil {
			return trivia.Question{}, fmt.Errorf("failed to decode options for %s: %w", row.ID, err)
		}
		m := &trivia.MCQ{Options: options}
		if idx := sqlutil.FromSqlInt32(row.CorrectIndex); idx != nil {
			m.CorrectIndex = *idx
		}
		q.MCQ = m
	case trivia.KindEstimate:
		e := &trivia.Estimate{}
		if v := sqlutil.FromSqlFloat64(row.CorrectValue); v != nil {
			e.CorrectValue = *v
		}
		q.Estimate = e
	}
	return q, nil
}

const questionColumns = `id, kind, body, time_ms, options, correct_index, correct_value`

func scanQuestion(s interface{ Scan(...interface{}) error }) (trivia.Question, error) {
	var row questionRow
	if err := s.Scan(&row.ID, &row.Kind, &row.Body, &row.TimeMs, &row.Options, &row.CorrectIndex, &row.CorrectValue); err != nil {
		return trivia.Question{}, err
	}
	return row.toModel()
}

func (r *PostgresRepository) List(ctx context.Context) ([]trivia.Question, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM trivia_questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var out []trivia.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (trivia.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM trivia_questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trivia.Question{}, ErrNotFound
		}
		return trivia.Question{}, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

func (r *PostgresRepository) Create(ctx context.Context, q trivia.Question) error {
	row, err := toRow(q)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO trivia_questions (id, kind, body, time_ms, options, correct_index, correct_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.Kind, row.Body, row.TimeMs, row.Options, row.CorrectIndex, row.CorrectValue)
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, q trivia.Question) error {
	row, err := toRow(q)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE trivia_questions
		SET kind = $2, body = $3, time_ms = $4, options = $5, correct_index = $6, correct_value = $7
		WHERE id = $1`,
		row.ID, row.Kind, row.Body, row.TimeMs, row.Options, row.CorrectIndex, row.CorrectValue)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trivia_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return expectOne(res)
}

// SeedMissing inserts every question whose id is not stored yet, in one transaction.
func (r *PostgresRepository) SeedMissing(ctx context.Context, questions []trivia.Question) (int, error) {
	inserted := 0
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, q := range questions {
			row, err := toRow(q)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO trivia_questions (id, kind, body, time_ms, options, correct_index, correct_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO NOTHING`,
				row.ID, row.Kind, row.Body, row.TimeMs, row.Options, row.CorrectIndex, row.CorrectValue)
			if err != nil {
				return fmt.Errorf("failed to seed question %s: %w", q.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
