package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/knockout/go/internal/dbconfig"
	"github.com/mcdev12/knockout/go/internal/questionbank"
	"github.com/mcdev12/knockout/go/internal/trivia"
)

func main() {
	path := flag.String("file", "questions.yaml", "question bank YAML file")
	flag.Parse()

	_ = godotenv.Load()

	// 1) Load the YAML bank
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}
	questions, err := questionbank.ParseSeed(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", *path, err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, questionbank.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "create schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert and count
	var inserted, updated, errs int
	for _, q := range questions {
		if q.TimeMs == 0 {
			q.TimeMs = trivia.DefaultQuestionTimeMs
		}
		if err := q.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "skipping question %s: %v\n", q.ID, err)
			errs++
			continue
		}
		isNew, err := upsert(ctx, pool, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting question %s: %v\n", q.ID, err)
			errs++
			continue
		}
		if isNew {
			inserted++
		} else {
			updated++
		}
	}

	fmt.Printf(
		"Question seed complete: %d total, %d inserted, %d updated, %d errors\n",
		len(questions), inserted, updated, errs,
	)
}

// upsert writes q and reports whether the row was newly inserted.
func upsert(ctx context.Context, pool *pgxpool.Pool, q trivia.Question) (bool, error) {
	var (
		options      []byte
		correctIndex *int
		correctValue *float64
	)
	if q.MCQ != nil {
		raw, err := json.Marshal(q.MCQ.Options)
		if err != nil {
			return false, err
		}
		options = raw
		correctIndex = &q.MCQ.CorrectIndex
	}
	if q.Estimate != nil {
		correctValue = &q.Estimate.CorrectValue
	}

	var isNew bool
	err := pool.QueryRow(ctx, `
		INSERT INTO trivia_questions (id, kind, body, time_ms, options, correct_index, correct_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			body = EXCLUDED.body,
			time_ms = EXCLUDED.time_ms,
			options = EXCLUDED.options,
			correct_index = EXCLUDED.correct_index,
			correct_value = EXCLUDED.correct_value
		RETURNING (xmax = 0)
	`, q.ID, string(q.Kind), q.Body, q.TimeMs, options, correctIndex, correctValue).Scan(&isNew)
	return isNew, err
}
