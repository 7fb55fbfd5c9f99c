package questionbank

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// SeedFile is the YAML layout of a question bank file.
type SeedFile struct {
	Questions []trivia.Question `yaml:"questions"`
}

// ParseSeed decodes a YAML question bank.
func ParseSeed(data []byte) ([]trivia.Question, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}
	return file.Questions, nil
}

// LoadSeed reads path, falling back to the built-in questions when the file does not exist.
func LoadSeed(path string) ([]trivia.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", path).Msg("question file not found, using built-in questions")
			return DefaultQuestions(), nil
		}
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	return ParseSeed(data)
}

// DefaultQuestions is the built-in bank.
func DefaultQuestions() []trivia.Question {
	return []trivia.Question{
		{
			ID:     "capital-france",
			Kind:   trivia.KindMCQ,
			Body:   "What is the capital of France?",
			TimeMs: trivia.DefaultQuestionTimeMs,
			MCQ:    &trivia.MCQ{Options: []string{"Berlin", "Madrid", "Paris", "Rome"}, CorrectIndex: 2},
		},
		{
			ID:     "largest-planet",
			Kind:   trivia.KindMCQ,
			Body:   "Which planet is the largest in our solar system?",
			TimeMs: trivia.DefaultQuestionTimeMs,
			MCQ:    &trivia.MCQ{Options: []string{"Earth", "Jupiter", "Saturn", "Neptune"}, CorrectIndex: 1},
		},
		{
			ID:     "shakespeare",
			Kind:   trivia.KindMCQ,
			Body:   "Who wrote 'Romeo and Juliet'?",
			TimeMs: trivia.DefaultQuestionTimeMs,
			MCQ:    &trivia.MCQ{Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectIndex: 1},
		},
		{
			ID:     "boiling-point",
			Kind:   trivia.KindMCQ,
			Body:   "What is the boiling point of water at sea level in Celsius?",
			TimeMs: trivia.DefaultQuestionTimeMs,
			MCQ:    &trivia.MCQ{Options: []string{"90", "100", "110", "120"}, CorrectIndex: 1},
		},
		{
			ID:       "eiffel-height",
			Kind:     trivia.KindEstimate,
			Body:     "How tall is the Eiffel Tower in meters?",
			TimeMs:   15000,
			Estimate: &trivia.Estimate{CorrectValue: 330},
		},
	}
}
