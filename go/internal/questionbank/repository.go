package questionbank

import (
	"context"
	"errors"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

var (
	// ErrNotFound is returned for an unknown question id.
	ErrNotFound = errors.New("question not found")
	// ErrDuplicate is returned when creating a question whose id already exists.
	ErrDuplicate = errors.New("question already exists")
)

// Repository defines what the app needs from question storage.
type Repository interface {
	List(ctx context.Context) ([]trivia.Question, error)
	Get(ctx context.Context, id string) (trivia.Question, error)
	Create(ctx context.Context, q trivia.Question) error
	Update(ctx context.Context, q trivia.Question) error
	Delete(ctx context.Context, id string) error
}
