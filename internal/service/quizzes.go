package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/grader"
	"github.com/remaimber-it/mastery/internal/infrastructure/tracing"
	"github.com/remaimber-it/mastery/internal/store"
)

// QuizStatus is the externally visible state of an adaptive quiz.
type QuizStatus string

const (
	StatusPreparing QuizStatus = "preparing"
	StatusDelayed   QuizStatus = "delayed"
	StatusFailed    QuizStatus = "failed"
	StatusReady     QuizStatus = "ready"
	StatusCompleted QuizStatus = "completed"
)

// ComplexQuiz is a quiz together with its questions and answers.
// Questions stay hidden until the quiz is ready for answering.
type ComplexQuiz struct {
	Quiz      *quiz.AdaptiveQuiz
	Status    QuizStatus
	Questions []quiz.Question
	Answers   []quiz.Answer
	Error     string
}

// NextQuestionID returns the first question without an answer, or "".
func (c *ComplexQuiz) NextQuestionID() string {
	answered := make(map[string]bool, len(c.Answers))
	for _, a := range c.Answers {
		answered[a.QuestionID] = true
	}
	for _, q := range c.Questions {
		if !answered[q.ID] {
			return q.ID
		}
	}
	return ""
}

func (l *QuizLifecycle) GetComplexAdaptiveQuiz(ctx context.Context, quizID string) (*ComplexQuiz, error) {
	aq, err := l.store.GetAdaptiveQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	res := &ComplexQuiz{Quiz: aq}
	switch {
	case aq.IsCompleted:
		res.Status = StatusCompleted
	case aq.ReadyForAnswering:
		res.Status = StatusReady
	default:
		res.Status = StatusPreparing
		task, err := l.store.GetGenerationByQuiz(ctx, aq.ID)
		switch {
		case err == nil && task.Status == quiz.TaskAbandoned:
			res.Status = StatusFailed
			res.Error = task.LastError
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		case l.opts.PreparingWindow > 0 && l.now().Sub(aq.CreatedAt) > l.opts.PreparingWindow:
			res.Status = StatusDelayed
		}
	}

	if res.Status == StatusReady || res.Status == StatusCompleted {
		res.Questions, err = l.store.ListQuestionsByBaseQuiz(ctx, aq.BaseQuizID)
		if err != nil {
			return nil, err
		}
	}
	res.Answers, err = l.store.ListAnswersByQuiz(ctx, aq.ID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetNextQuiz returns the lowest open quiz version of a user block.
func (l *QuizLifecycle) GetNextQuiz(ctx context.Context, userBlockID string) (*ComplexQuiz, error) {
	ub, err := l.store.GetUserBlock(ctx, userBlockID)
	if err != nil {
		return nil, err
	}

	open, err := l.store.NextOpenQuiz(ctx, ub.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && ub.Completed {
			return nil, ErrBlockMastered
		}
		return nil, err
	}
	return l.GetComplexAdaptiveQuiz(ctx, open.ID)
}

// ConceptProgress is a concept estimate together with the concept name and
// whether it currently meets the mastery criteria.
type ConceptProgress struct {
	concept.Progress
	Name          string
	IntervalWidth float64
}

type BlockProgress struct {
	UserBlockID string
	Completed   bool
	Concepts    []ConceptProgress
}

func (l *QuizLifecycle) GetConceptProgress(ctx context.Context, userBlockID string) (*BlockProgress, error) {
	ub, err := l.store.GetUserBlock(ctx, userBlockID)
	if err != nil {
		return nil, err
	}
	concepts, err := l.store.ListConceptsByBlock(ctx, ub.BlockID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(concepts))
	for _, c := range concepts {
		names[c.ID] = c.Name
	}

	progresses, err := l.store.ListProgress(ctx, ub.ID)
	if err != nil {
		return nil, err
	}

	res := &BlockProgress{UserBlockID: ub.ID, Completed: ub.Completed}
	for _, p := range progresses {
		res.Concepts = append(res.Concepts, ConceptProgress{
			Progress:      p,
			Name:          names[p.ConceptID],
			IntervalWidth: l.evaluator.IntervalWidth(p),
		})
	}
	return res, nil
}

// SubmitAnswer records one answer. Multiple choice answers are compared to
// the correct option text; open answers go to the grader. Each question
// takes one answer per quiz. The open check is repeated by the insert, so
// an answer racing a finish is rejected with ErrQuizCompleted.
func (l *QuizLifecycle) SubmitAnswer(ctx context.Context, quizID, questionID, answerText string) (*quiz.Answer, error) {
	ctx, span := tracing.Start(ctx, "lifecycle.SubmitAnswer",
		attribute.String("quiz_id", quizID),
		attribute.String("question_id", questionID),
	)
	defer span.End()

	aq, err := l.store.GetAdaptiveQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if aq.IsCompleted {
		return nil, ErrQuizCompleted
	}
	if !aq.ReadyForAnswering {
		return nil, ErrQuizNotReady
	}

	q, err := l.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrQuestionNotInQuiz
		}
		return nil, err
	}
	if q.BaseQuizID != aq.BaseQuizID {
		return nil, ErrQuestionNotInQuiz
	}

	// checked before grading so a repeat does not cost a grader call
	answers, err := l.store.ListAnswersByQuiz(ctx, aq.ID)
	if err != nil {
		return nil, err
	}
	for _, prev := range answers {
		if prev.QuestionID == q.ID {
			return nil, ErrAlreadyAnswered
		}
	}

	correct, err := l.judge(ctx, q, answerText)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	a := quiz.NewAnswer(aq.ID, q.ID, answerText, correct, l.now())
	a.QuestionType = q.QuestionType
	if err := l.store.CreateAnswer(ctx, a); err != nil {
		switch {
		case errors.Is(err, store.ErrQuizClosed):
			return nil, ErrQuizCompleted
		case errors.Is(err, store.ErrConflict):
			return nil, ErrAlreadyAnswered
		}
		return nil, err
	}
	return a, nil
}

func (l *QuizLifecycle) judge(ctx context.Context, q *quiz.Question, answer string) (bool, error) {
	if q.QuestionType.HasOptions() {
		opt := q.CorrectOption()
		return opt != nil && strings.TrimSpace(answer) == strings.TrimSpace(opt.OptionText), nil
	}
	if l.grader == nil {
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswerText)), nil
	}

	correct, err := l.grader.IsCorrect(ctx, grader.Question{
		Text:         q.QuestionText,
		Expected:     q.CorrectAnswerText,
		CodeSnippet:  q.CodeSnippet,
		QuestionType: q.QuestionType,
	}, answer)
	if err != nil {
		return false, fmt.Errorf("grade answer: %w", err)
	}
	return correct, nil
}
