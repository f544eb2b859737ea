// Package grader decides whether a free-text answer is correct.
package grader

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/llm"
)

// Grader judges an open answer against the expected one.
// Implementations may call an LLM, use heuristics, or return canned results (for tests).
type Grader interface {
	IsCorrect(ctx context.Context, q Question, answer string) (bool, error)
}

// Question is what a grader needs to know about the question being answered.
type Question struct {
	Text         string
	Expected     string
	CodeSnippet  string
	QuestionType quiz.QuestionType
}

// GradeError is returned when grading fails so the caller can distinguish
// between "LLM returned a bad verdict" and "LLM was unreachable."
type GradeError struct {
	Reason  string
	Wrapped error
}

func (e *GradeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("grading failed: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("grading failed: %s", e.Reason)
}

func (e *GradeError) Unwrap() error {
	return e.Wrapped
}

// LLMGrader asks a chat model for a Yes/No verdict.
type LLMGrader struct {
	llm llm.Completer
}

var _ Grader = (*LLMGrader)(nil)

func NewLLMGrader(c llm.Completer) *LLMGrader {
	return &LLMGrader{llm: c}
}

const maxRetries = 2

// IsCorrect never calls the model for a blank answer. An exact match with
// the expected answer, ignoring case and surrounding space, is accepted
// without a call as well. It retries once when the verdict is unreadable.
func (g *LLMGrader) IsCorrect(ctx context.Context, q Question, answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false, nil
	}
	if strings.EqualFold(answer, strings.TrimSpace(q.Expected)) {
		return true, nil
	}

	var prompt string
	if q.QuestionType.NeedsCode() {
		prompt = buildCodePrompt(q, answer)
	} else {
		prompt = buildTheoryPrompt(q, answer)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		reply, err := g.llm.Complete(ctx, []llm.Message{llm.User(prompt)})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		verdict, ok := parseVerdict(reply)
		if !ok {
			lastErr = &GradeError{Reason: fmt.Sprintf("unreadable verdict %q", reply)}
			continue
		}
		return verdict, nil
	}

	return false, &GradeError{
		Reason:  fmt.Sprintf("failed after %d attempts", maxRetries),
		Wrapped: lastErr,
	}
}

// parseVerdict reads a leading yes or no, ignoring case and punctuation.
func parseVerdict(reply string) (bool, bool) {
	word := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(word) == 0 {
		return false, false
	}
	switch word[0] {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}

// ============================================================================
// Prompt builders
// ============================================================================

func buildTheoryPrompt(q Question, answer string) string {
	return fmt.Sprintf(`/no_think
You are checking a study exercise. Decide if the user's answer is correct.

RULES:
- Be lenient: accept synonyms, typos and small mistakes if the meaning is right.
- A blank or unrelated answer is incorrect.

QUESTION:
%s

EXPECTED ANSWER (not strict):
%s

USER'S ANSWER:
%s

Respond with ONLY "Yes" or "No".`, q.Text, q.Expected, answer)
}

func buildCodePrompt(q Question, answer string) string {
	return fmt.Sprintf(`/no_think
You are checking a code exercise. Decide if the user's code is correct.

RULES:
- Compare structure and logic, not exact variable names or formatting.
- The code must achieve the same result as the expected code in the given snippet.
- Small typos are fine; wrong logic or missing calls are not.

QUESTION:
%s

CODE:
%s

EXPECTED CODE:
%s

USER'S CODE:
%s

Respond with ONLY "Yes" or "No".`, q.Text, q.CodeSnippet, q.Expected, answer)
}
