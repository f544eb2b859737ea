package quiz

import (
	"time"

	"github.com/remaimber-it/mastery/internal/id"
)

// BaseQuiz is the container generated questions hang off.
type BaseQuiz struct {
	ID        string
	CreatedAt time.Time
}

func NewBaseQuiz(now time.Time) *BaseQuiz {
	return &BaseQuiz{ID: id.GenerateID(), CreatedAt: now}
}

// PlacementQuiz is the shared first quiz of a block. It is generated once
// over every concept and its base quiz is reused by each learner's first
// adaptive quiz.
type PlacementQuiz struct {
	ID         string
	BlockID    string
	BaseQuizID string
	CreatedAt  time.Time
}

func NewPlacementQuiz(blockID, baseQuizID string, now time.Time) *PlacementQuiz {
	return &PlacementQuiz{
		ID:         id.GenerateID(),
		BlockID:    blockID,
		BaseQuizID: baseQuizID,
		CreatedAt:  now,
	}
}

// AdaptiveQuiz is one version of the quiz sequence served to a learner
// within a block attempt. It must not be shown until ReadyForAnswering.
type AdaptiveQuiz struct {
	ID                string
	UserBlockID       string
	BaseQuizID        string
	Version           int
	IsCompleted       bool
	ReadyForAnswering bool
	PlacementQuizID   *string
	CreatedAt         time.Time
}

func NewAdaptiveQuiz(userBlockID, baseQuizID string, version int, now time.Time) *AdaptiveQuiz {
	return &AdaptiveQuiz{
		ID:          id.GenerateID(),
		UserBlockID: userBlockID,
		BaseQuizID:  baseQuizID,
		Version:     version,
		CreatedAt:   now,
	}
}

// Answer is a single submitted answer. Answers are append-only and their
// CreatedAt order matters for streaks. A question takes at most one answer
// per quiz.
type Answer struct {
	ID             string
	AdaptiveQuizID string
	QuestionID     string
	AnswerText     string
	IsCorrect      bool
	CreatedAt      time.Time
	// QuestionType is filled in when answers are read back.
	QuestionType QuestionType
}

func NewAnswer(quizID, questionID, text string, correct bool, now time.Time) *Answer {
	return &Answer{
		ID:             id.GenerateID(),
		AdaptiveQuizID: quizID,
		QuestionID:     questionID,
		AnswerText:     text,
		IsCorrect:      correct,
		CreatedAt:      now,
	}
}

// HistoryEntry is a previously asked question and how the learner did on it.
type HistoryEntry struct {
	QuestionText      string `json:"questionText"`
	CorrectAnswerText string `json:"correctAnswerText"`
	IsCorrect         bool   `json:"isCorrect"`
}
