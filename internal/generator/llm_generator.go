package generator

import (
	"context"
	"encoding/json"

	"github.com/remaimber-it/mastery/internal/llm"
)

// LLMGenerator asks a chat model for questions and validates the reply.
type LLMGenerator struct {
	llm llm.Completer
}

var _ Generator = (*LLMGenerator)(nil)

func NewLLMGenerator(c llm.Completer) *LLMGenerator {
	return &LLMGenerator{llm: c}
}

type generatedQuiz struct {
	Questions []Question `json:"questions"`
}

// Generate makes a single request. Retries are left to the caller, which
// can tell transient failures from bad content with IsTransient.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) ([]Question, error) {
	if req.QuestionCount() == 0 {
		return nil, nil
	}

	reply, err := g.llm.Complete(ctx, []llm.Message{
		llm.System(buildMaterialPrompt(req.Chunks, req.Siblings)),
		llm.User(buildQuestionsPrompt(req)),
	})
	if err != nil {
		if IsTransient(err) {
			return nil, &TransientError{Reason: "LLM call failed", Wrapped: err}
		}
		return nil, err
	}

	jsonStr := llm.ExtractJSON(reply)
	if jsonStr == "" {
		return nil, &ValidationError{Reason: "no JSON found in LLM response"}
	}

	var out generatedQuiz
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		// some models return the bare array
		if arrErr := json.Unmarshal([]byte(jsonStr), &out.Questions); arrErr != nil {
			return nil, &ValidationError{Reason: "invalid JSON from LLM", Wrapped: err}
		}
	}

	return Validate(req, out.Questions)
}
