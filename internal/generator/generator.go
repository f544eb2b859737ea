// Package generator produces new quiz questions for a concept.
package generator

import (
	"context"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// Generator creates questions for one concept.
// Implementations may call an LLM or return canned questions (for tests).
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Question, error)
}

type Request struct {
	Concept  string
	Siblings []string // other concepts of the block, for context only
	Chunks   []string // supporting material from the block
	Mix      quiz.TypeMix
	History  []quiz.HistoryEntry // previously asked questions, not to be repeated
}

func (r Request) QuestionCount() int {
	return r.Mix.Total()
}

type Question struct {
	QuestionType      quiz.QuestionType `json:"questionType"`
	QuestionText      string            `json:"questionText"`
	CodeSnippet       string            `json:"codeSnippet"`
	CorrectAnswerText string            `json:"correctAnswerText"`
	Options           []Option          `json:"options"`
}

type Option struct {
	OptionText string `json:"optionText"`
	IsCorrect  bool   `json:"isCorrect"`
}
