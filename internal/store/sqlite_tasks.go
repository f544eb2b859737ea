package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/id"
)

// ============================================================================
// Generation tasks
// ============================================================================

const taskColumns = "id, adaptive_quiz_id, status, attempts, last_error, last_error_at, heartbeat_at, plan, created_at, updated_at"

func scanTask(scan func(dest ...any) error) (*quiz.GenerationTask, error) {
	var (
		t           quiz.GenerationTask
		status      string
		lastErrorAt sql.NullInt64
		heartbeatAt sql.NullInt64
		plan        sql.NullString
		createdAt   int64
		updatedAt   int64
	)
	err := scan(&t.ID, &t.AdaptiveQuizID, &status, &t.Attempts, &t.LastError,
		&lastErrorAt, &heartbeatAt, &plan, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	t.Status = quiz.TaskStatus(status)
	t.LastErrorAt = nullTime(lastErrorAt)
	t.HeartbeatAt = nullTime(heartbeatAt)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	if plan.Valid && plan.String != "" {
		if err := json.Unmarshal([]byte(plan.String), &t.Plan); err != nil {
			return nil, fmt.Errorf("decode plan of task %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

// EnqueueGeneration creates the queued task for a quiz. Enqueueing the same
// quiz twice returns ErrConflict.
func (q *queries) EnqueueGeneration(ctx context.Context, quizID string, now time.Time) (*quiz.GenerationTask, error) {
	t := &quiz.GenerationTask{
		ID:             id.GenerateID(),
		AdaptiveQuizID: quizID,
		Status:         quiz.TaskQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO generation_tasks (id, adaptive_quiz_id, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', ?, ?)`,
		t.ID, t.AdaptiveQuizID, string(t.Status), toNanos(now), toNanos(now),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("generation task for quiz %s: %w", quizID, ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ClaimGeneration atomically moves the oldest runnable task to running and
// returns it. Runnable means queued, failed and due for a retry, or running
// with a stale heartbeat. It returns ErrNotFound when nothing is runnable.
func (q *queries) ClaimGeneration(ctx context.Context, opts ClaimOptions, now time.Time) (*quiz.GenerationTask, error) {
	retryBefore := toNanos(now.Add(-opts.RetryDelay))
	staleBefore := toNanos(now.Add(-opts.StaleAfter))

	row := q.db.QueryRowContext(ctx, `
		UPDATE generation_tasks
		SET status = 'running', attempts = attempts + 1, heartbeat_at = ?, updated_at = ?
		WHERE id = (
		    SELECT id FROM generation_tasks
		    WHERE status = 'queued'
		       OR (status = 'failed' AND attempts < ? AND last_error_at <= ?)
		       OR (status = 'running' AND heartbeat_at <= ?)
		    ORDER BY created_at, rowid
		    LIMIT 1
		)
		RETURNING `+taskColumns,
		toNanos(now), toNanos(now), opts.MaxAttempts, retryBefore, staleBefore,
	)
	return scanTask(row.Scan)
}

func (q *queries) GetGenerationByQuiz(ctx context.Context, quizID string) (*quiz.GenerationTask, error) {
	return scanTask(q.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM generation_tasks WHERE adaptive_quiz_id = ?", quizID,
	).Scan)
}

func (q *queries) SaveGenerationPlan(ctx context.Context, taskID string, plan []quiz.PlannedConcept, now time.Time) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	result, err := q.db.ExecContext(ctx,
		"UPDATE generation_tasks SET plan = ?, updated_at = ? WHERE id = ?",
		string(data), toNanos(now), taskID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (q *queries) HeartbeatGeneration(ctx context.Context, taskID string, now time.Time) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE generation_tasks SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = 'running'",
		toNanos(now), toNanos(now), taskID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (q *queries) CompleteGeneration(ctx context.Context, taskID string, now time.Time) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE generation_tasks SET status = 'done', last_error = '', updated_at = ? WHERE id = ?",
		toNanos(now), taskID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// FailGeneration records a failed attempt. The task goes back to failed for
// a later retry, or to abandoned once maxAttempts have been used. The
// resulting status is returned.
func (q *queries) FailGeneration(ctx context.Context, taskID, reason string, maxAttempts int, now time.Time) (quiz.TaskStatus, error) {
	var status string
	err := q.db.QueryRowContext(ctx, `
		UPDATE generation_tasks
		SET status = CASE WHEN attempts >= ? THEN 'abandoned' ELSE 'failed' END,
		    last_error = ?, last_error_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING status`,
		maxAttempts, reason, toNanos(now), toNanos(now), taskID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return quiz.TaskStatus(status), nil
}

func (q *queries) AbandonGeneration(ctx context.Context, taskID, reason string, now time.Time) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = 'abandoned', last_error = ?, last_error_at = ?, updated_at = ?
		WHERE id = ?`,
		reason, toNanos(now), toNanos(now), taskID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}
