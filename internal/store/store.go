package store

import (
	"context"
	"errors"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/domain/userblock"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrQuizClosed is returned when an answer targets a quiz that is not
	// open for answering.
	ErrQuizClosed = errors.New("quiz is not open for answering")
)

// Queries is the set of reads and writes the engine performs. It is
// implemented both by the store itself and by the transaction handle
// passed to WithinTx, so the same code runs inside or outside a
// transaction.
type Queries interface {
	// Concepts
	CreateConcept(ctx context.Context, c *concept.Concept) error
	GetConcept(ctx context.Context, id string) (*concept.Concept, error)
	ListConceptsByBlock(ctx context.Context, blockID string) ([]concept.Concept, error)

	// User blocks
	CreateUserBlock(ctx context.Context, ub *userblock.UserBlock) error
	GetUserBlock(ctx context.Context, id string) (*userblock.UserBlock, error)
	GetUserBlockByUserAndBlock(ctx context.Context, userID, blockID string) (*userblock.UserBlock, error)
	MarkUserBlockCompleted(ctx context.Context, id string) error

	// Concept progress
	CreateProgress(ctx context.Context, p concept.Progress) error
	ListProgress(ctx context.Context, userBlockID string) ([]concept.Progress, error)
	UpdateProgress(ctx context.Context, p concept.Progress) error

	// Quizzes
	CreateBaseQuiz(ctx context.Context, bq *quiz.BaseQuiz) error
	CreateAdaptiveQuiz(ctx context.Context, q *quiz.AdaptiveQuiz) error
	GetAdaptiveQuiz(ctx context.Context, id string) (*quiz.AdaptiveQuiz, error)
	LastQuizVersion(ctx context.Context, userBlockID string) (int, error)
	NextOpenQuiz(ctx context.Context, userBlockID string) (*quiz.AdaptiveQuiz, error)
	MarkQuizCompleted(ctx context.Context, id string) error
	MarkQuizReady(ctx context.Context, id string) error
	CreatePlacementQuiz(ctx context.Context, pq *quiz.PlacementQuiz) error
	GetPlacementQuizByBlock(ctx context.Context, blockID string) (*quiz.PlacementQuiz, error)

	// Questions
	CreateQuestion(ctx context.Context, q *quiz.Question) error
	GetQuestion(ctx context.Context, id string) (*quiz.Question, error)
	ListQuestionsByBaseQuiz(ctx context.Context, baseQuizID string) ([]quiz.Question, error)
	QuestionConcepts(ctx context.Context, questionIDs []string) (map[string]string, error)
	CountQuestionsByConcept(ctx context.Context, baseQuizID string) (map[string]int, error)
	ConceptHistory(ctx context.Context, userBlockID, conceptID string) ([]quiz.HistoryEntry, error)

	// Answers
	// CreateAnswer only inserts into a quiz that is ready and not completed
	// (ErrQuizClosed) and only once per question (ErrConflict).
	CreateAnswer(ctx context.Context, a *quiz.Answer) error
	ListAnswersByQuiz(ctx context.Context, quizID string) ([]quiz.Answer, error)

	// Generation tasks
	EnqueueGeneration(ctx context.Context, quizID string, now time.Time) (*quiz.GenerationTask, error)
	ClaimGeneration(ctx context.Context, opts ClaimOptions, now time.Time) (*quiz.GenerationTask, error)
	GetGenerationByQuiz(ctx context.Context, quizID string) (*quiz.GenerationTask, error)
	SaveGenerationPlan(ctx context.Context, taskID string, plan []quiz.PlannedConcept, now time.Time) error
	HeartbeatGeneration(ctx context.Context, taskID string, now time.Time) error
	CompleteGeneration(ctx context.Context, taskID string, now time.Time) error
	FailGeneration(ctx context.Context, taskID, reason string, maxAttempts int, now time.Time) (quiz.TaskStatus, error)
	AbandonGeneration(ctx context.Context, taskID, reason string, now time.Time) error
}

// Store is a Queries backed by a database that can also open transactions.
type Store interface {
	Queries
	WithinTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}

// ClaimOptions controls which generation tasks are eligible for a claim.
type ClaimOptions struct {
	// Failed tasks are retried only while attempts < MaxAttempts.
	MaxAttempts int
	// Failed tasks wait at least RetryDelay after their last error.
	RetryDelay time.Duration
	// Running tasks without a heartbeat for StaleAfter are reclaimed.
	StaleAfter time.Duration
}
