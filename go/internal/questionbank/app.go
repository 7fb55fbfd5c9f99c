package questionbank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// Seeder is implemented by repositories that can bulk-insert missing questions.
type Seeder interface {
	SeedMissing(ctx context.Context, questions []trivia.Question) (int, error)
}

// App holds question bank rules on top of a Repository.
type App struct {
	repo  Repository
	newID func() string
}

// NewApp creates a question bank app.
func NewApp(repo Repository) *App {
	return &App{
		repo:  repo,
		newID: func() string { return uuid.New().String() },
	}
}

// ListQuestions returns the whole bank in storage order.
func (a *App) ListQuestions(ctx context.Context) ([]trivia.Question, error) {
	return a.repo.List(ctx)
}

// GetQuestion returns one question.
func (a *App) GetQuestion(ctx context.Context, id string) (trivia.Question, error) {
	return a.repo.Get(ctx, id)
}

// CreateQuestion assigns an id when missing, applies the default time limit and stores q.
func (a *App) CreateQuestion(ctx context.Context, q trivia.Question) (trivia.Question, error) {
	q = normalize(q)
	if q.ID == "" {
		q.ID = a.newID()
	}
	if err := q.Validate(); err != nil {
		return trivia.Question{}, err
	}
	if err := a.repo.Create(ctx, q); err != nil {
		return trivia.Question{}, err
	}
	log.Info().Str("question_id", q.ID).Str("kind", string(q.Kind)).Msg("question created")
	return q, nil
}

// UpdateQuestion replaces the question stored under id.
func (a *App) UpdateQuestion(ctx context.Context, id string, q trivia.Question) (trivia.Question, error) {
	q = normalize(q)
	q.ID = id
	if err := q.Validate(); err != nil {
		return trivia.Question{}, err
	}
	if err := a.repo.Update(ctx, q); err != nil {
		return trivia.Question{}, err
	}
	return q, nil
}

// DeleteQuestion removes a question. Running sessions keep their own copy.
func (a *App) DeleteQuestion(ctx context.Context, id string) error {
	return a.repo.Delete(ctx, id)
}

// Seed stores every valid question not already present and returns how many were added.
func (a *App) Seed(ctx context.Context, questions []trivia.Question) (int, error) {
	valid := make([]trivia.Question, 0, len(questions))
	for _, q := range questions {
		q = normalize(q)
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("invalid seed question %q: %w", q.ID, err)
		}
		if q.ID == "" {
			return 0, fmt.Errorf("seed question %q has no id", q.Body)
		}
		valid = append(valid, q)
	}

	if s, ok := a.repo.(Seeder); ok {
		return s.SeedMissing(ctx, valid)
	}

	added := 0
	for _, q := range valid {
		err := a.repo.Create(ctx, q)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func normalize(q trivia.Question) trivia.Question {
	q.Body = strings.TrimSpace(q.Body)
	if q.TimeMs == 0 {
		q.TimeMs = trivia.DefaultQuestionTimeMs
	}
	return q
}
