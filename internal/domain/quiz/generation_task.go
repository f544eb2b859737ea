package quiz

import "time"

// TaskStatus is the lifecycle of a GenerationTask.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskFailed    TaskStatus = "failed"
	TaskDone      TaskStatus = "done"
	TaskAbandoned TaskStatus = "abandoned"
)

// GenerationTask is the durable marker that an adaptive quiz still needs
// its questions generated. There is at most one task per quiz.
type GenerationTask struct {
	ID             string
	AdaptiveQuizID string
	Status         TaskStatus
	Attempts       int
	LastError      string
	LastErrorAt    *time.Time
	HeartbeatAt    *time.Time
	Plan           []PlannedConcept
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlannedConcept is one concept chosen for generation together with its
// question budget. The plan is fixed on the first run so retries
// regenerate the same concepts.
type PlannedConcept struct {
	ConceptID     string  `json:"concept_id"`
	Score         float64 `json:"score"`
	Priority      float64 `json:"priority"`
	QuestionCount int     `json:"question_count"`
}
