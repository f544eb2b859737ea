package service

import (
	"errors"
	"fmt"

	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
)

var (
	ErrQuizNotReady      = errors.New("quiz is not ready for answering")
	ErrQuizCompleted     = errors.New("quiz is already completed")
	ErrQuestionNotInQuiz = errors.New("question does not belong to this quiz")
	ErrBlockMastered     = errors.New("block is already mastered")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyAnswered   = errors.New("question is already answered in this quiz")
)

// InvariantViolation describes a record that breaks a data invariant and
// was skipped. It is reported, never returned.
type InvariantViolation struct {
	Kind       string
	QuizID     string
	AnswerID   string
	QuestionID string
}

func (v InvariantViolation) String() string {
	return fmt.Sprintf("%s: quiz=%s answer=%s question=%s", v.Kind, v.QuizID, v.AnswerID, v.QuestionID)
}

const violationUnresolvedConcept = "answer_without_concept"

func (l *QuizLifecycle) reportViolation(v InvariantViolation) {
	metrics.InvariantViolations.WithLabelValues(v.Kind).Inc()
	l.logger.Warn("invariant violation, record skipped",
		"kind", v.Kind,
		"quiz_id", v.QuizID,
		"answer_id", v.AnswerID,
		"question_id", v.QuestionID,
	)
}
