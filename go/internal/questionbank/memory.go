package questionbank

import (
	"context"
	"sync"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// MemoryRepository keeps questions in insertion order.
type MemoryRepository struct {
	mu        sync.RWMutex
	order     []string
	questions map[string]trivia.Question
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{questions: make(map[string]trivia.Question)}
}

func (m *MemoryRepository) List(ctx context.Context) ([]trivia.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]trivia.Question, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.questions[id].Clone())
	}
	return out, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (trivia.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return trivia.Question{}, ErrNotFound
	}
	return q.Clone(), nil
}

func (m *MemoryRepository) Create(ctx context.Context, q trivia.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.questions[q.ID]; exists {
		return ErrDuplicate
	}
	m.questions[q.ID] = q.Clone()
	m.order = append(m.order, q.ID)
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, q trivia.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.questions[q.ID]; !exists {
		return ErrNotFound
	}
	m.questions[q.ID] = q.Clone()
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.questions[id]; !exists {
		return ErrNotFound
	}
	delete(m.questions, id)
	for i, qid := range m.order {
		if qid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
