package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// Validate checks each question's shape, drops the malformed ones and
// truncates to the requested count. Having fewer usable questions than
// requested is a ValidationError.
func Validate(req Request, questions []Question) ([]Question, error) {
	want := req.QuestionCount()

	var (
		valid    []Question
		problems []error
	)
	for i, q := range questions {
		q = normalize(q)
		if err := checkQuestion(q); err != nil {
			problems = append(problems, fmt.Errorf("question %d: %w", i+1, err))
			continue
		}
		valid = append(valid, q)
	}

	if len(valid) < want {
		return nil, &ValidationError{
			Reason:  fmt.Sprintf("got %d usable questions, want %d", len(valid), want),
			Wrapped: errors.Join(problems...),
		}
	}
	return valid[:want], nil
}

func normalize(q Question) Question {
	q.QuestionType = quiz.QuestionType(strings.ToUpper(strings.TrimSpace(string(q.QuestionType))))
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	q.CorrectAnswerText = strings.TrimSpace(q.CorrectAnswerText)
	q.CodeSnippet = strings.TrimSpace(q.CodeSnippet)
	for i := range q.Options {
		q.Options[i].OptionText = strings.TrimSpace(q.Options[i].OptionText)
	}
	return q
}

func checkQuestion(q Question) error {
	if q.QuestionText == "" {
		return errors.New("empty question text")
	}
	if q.CorrectAnswerText == "" {
		return errors.New("empty correct answer")
	}
	if !q.QuestionType.Valid() {
		return fmt.Errorf("unknown question type %q", q.QuestionType)
	}
	if q.QuestionType.NeedsCode() && q.CodeSnippet == "" {
		return fmt.Errorf("%s question without code snippet", q.QuestionType)
	}

	if !q.QuestionType.HasOptions() {
		if len(q.Options) > 0 {
			return fmt.Errorf("%s question must not have options", q.QuestionType)
		}
		return nil
	}

	if len(q.Options) < 2 {
		return fmt.Errorf("%s question needs at least 2 options, got %d", q.QuestionType, len(q.Options))
	}
	correct := 0
	for _, o := range q.Options {
		if o.OptionText == "" {
			return errors.New("empty option text")
		}
		if o.IsCorrect {
			correct++
			if o.OptionText != q.CorrectAnswerText {
				return fmt.Errorf("correct option %q does not match answer %q", o.OptionText, q.CorrectAnswerText)
			}
		}
	}
	if correct != 1 {
		return fmt.Errorf("expected exactly 1 correct option, got %d", correct)
	}
	return nil
}
