// Package event publishes domain events of the quiz lifecycle.
package event

import (
	"context"
	"time"
)

const (
	QuizCompletedKey        = "quiz.completed"
	BlockMasteredKey        = "block.mastered"
	QuizReadyKey            = "quiz.ready"
	QuizGenerationFailedKey = "quiz.generation_failed"
)

// Event is anything that can be routed on the topic exchange.
type Event interface {
	RoutingKey() string
}

// Publisher delivers events. Publishing is best-effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type QuizCompleted struct {
	QuizID      string    `json:"quiz_id"`
	UserBlockID string    `json:"user_block_id"`
	Version     int       `json:"version"`
	NextQuizID  string    `json:"next_quiz_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (QuizCompleted) RoutingKey() string { return QuizCompletedKey }

type BlockMastered struct {
	UserBlockID string    `json:"user_block_id"`
	UserID      string    `json:"user_id"`
	BlockID     string    `json:"block_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (BlockMastered) RoutingKey() string { return BlockMasteredKey }

type QuizReady struct {
	QuizID      string    `json:"quiz_id"`
	UserBlockID string    `json:"user_block_id"`
	Version     int       `json:"version"`
	Questions   int       `json:"questions"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (QuizReady) RoutingKey() string { return QuizReadyKey }

type QuizGenerationFailed struct {
	QuizID     string    `json:"quiz_id"`
	TaskID     string    `json:"task_id"`
	Attempts   int       `json:"attempts"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (QuizGenerationFailed) RoutingKey() string { return QuizGenerationFailedKey }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
