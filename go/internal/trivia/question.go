package trivia

import (
	"math"
	"strings"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

// QuestionKind tags which prompt a question carries.
type QuestionKind string

const (
	KindMCQ      QuestionKind = "mcq"
	KindEstimate QuestionKind = "estimate"
)

// DefaultQuestionTimeMs is applied by question banks when a question is stored without a time limit.
const DefaultQuestionTimeMs int64 = 10000

// MCQ is a multiple-choice prompt.
type MCQ struct {
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
}

// Estimate is a numeric-estimate prompt; the closest on-time answer survives.
type Estimate struct {
	CorrectValue float64 `json:"correctValue" yaml:"correctValue"`
}

// Question is a tagged union: exactly one of MCQ or Estimate is set, matching Kind.
type Question struct {
	ID       string       `json:"id" yaml:"id"`
	Kind     QuestionKind `json:"kind" yaml:"kind"`
	Body     string       `json:"body" yaml:"body"`
	TimeMs   int64        `json:"timeMs" yaml:"timeMs"`
	MCQ      *MCQ         `json:"mcq,omitempty" yaml:"mcq,omitempty"`
	Estimate *Estimate    `json:"estimate,omitempty" yaml:"estimate,omitempty"`
}

// Validate reports a ValidationError for malformed questions.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Body) == "" {
		return validation("question body is required")
	}
	if q.TimeMs <= 0 {
		return validation("question timeMs must be positive, got %d", q.TimeMs)
	}

	switch q.Kind {
	case KindMCQ:
		if q.MCQ == nil || q.Estimate != nil {
			return validation("mcq question must carry only mcq fields")
		}
		if len(q.MCQ.Options) < 2 {
			return validation("mcq question needs at least 2 options, got %d", len(q.MCQ.Options))
		}
		if q.MCQ.CorrectIndex < 0 || q.MCQ.CorrectIndex >= len(q.MCQ.Options) {
			return validation("mcq correctIndex %d out of range", q.MCQ.CorrectIndex)
		}
	case KindEstimate:
		if q.Estimate == nil || q.MCQ != nil {
			return validation("estimate question must carry only estimate fields")
		}
		if math.IsNaN(q.Estimate.CorrectValue) || math.IsInf(q.Estimate.CorrectValue, 0) {
			return validation("estimate correctValue must be finite")
		}
	default:
		return validation("unknown question kind %q", q.Kind)
	}

	return nil
}

// Clone returns a deep copy so a round never shares option slices with a bank.
func (q Question) Clone() Question {
	c := q
	if q.MCQ != nil {
		m := *q.MCQ
		m.Options = append([]string(nil), q.MCQ.Options...)
		c.MCQ = &m
	}
	if q.Estimate != nil {
		e := *q.Estimate
		c.Estimate = &e
	}
	return c
}

// Public is the projection sent to players: no correct-answer fields.
func (q Question) Public() events.Question {
	pq := events.Question{
		ID:     q.ID,
		Body:   q.Body,
		Kind:   string(q.Kind),
		TimeMs: q.TimeMs,
	}
	if q.MCQ != nil {
		pq.Options = append([]string(nil), q.MCQ.Options...)
	}
	return pq
}
