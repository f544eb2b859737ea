package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/userblock"
)

// ============================================================================
// Concepts
// ============================================================================

func (q *queries) CreateConcept(ctx context.Context, c *concept.Concept) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO concepts (id, block_id, name, difficulty_index) VALUES (?, ?, ?, ?)",
		c.ID, c.BlockID, c.Name, c.DifficultyIndex,
	)
	return err
}

func (q *queries) GetConcept(ctx context.Context, id string) (*concept.Concept, error) {
	var c concept.Concept
	err := q.db.QueryRowContext(ctx,
		"SELECT id, block_id, name, difficulty_index FROM concepts WHERE id = ?", id,
	).Scan(&c.ID, &c.BlockID, &c.Name, &c.DifficultyIndex)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (q *queries) ListConceptsByBlock(ctx context.Context, blockID string) ([]concept.Concept, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, block_id, name, difficulty_index FROM concepts WHERE block_id = ? ORDER BY rowid", blockID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []concept.Concept
	for rows.Next() {
		var c concept.Concept
		if err := rows.Scan(&c.ID, &c.BlockID, &c.Name, &c.DifficultyIndex); err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// ============================================================================
// User blocks
// ============================================================================

// CreateUserBlock returns ErrConflict when the user already has an attempt
// at the block.
func (q *queries) CreateUserBlock(ctx context.Context, ub *userblock.UserBlock) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO user_blocks (id, user_id, block_id, completed) VALUES (?, ?, ?, ?)",
		ub.ID, ub.UserID, ub.BlockID, boolToInt(ub.Completed),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s block %s: %w", ub.UserID, ub.BlockID, ErrConflict)
	}
	return err
}

func (q *queries) GetUserBlock(ctx context.Context, id string) (*userblock.UserBlock, error) {
	return scanUserBlock(q.db.QueryRowContext(ctx,
		"SELECT id, user_id, block_id, completed FROM user_blocks WHERE id = ?", id,
	))
}

func (q *queries) GetUserBlockByUserAndBlock(ctx context.Context, userID, blockID string) (*userblock.UserBlock, error) {
	return scanUserBlock(q.db.QueryRowContext(ctx,
		"SELECT id, user_id, block_id, completed FROM user_blocks WHERE user_id = ? AND block_id = ?", userID, blockID,
	))
}

func scanUserBlock(row *sql.Row) (*userblock.UserBlock, error) {
	var ub userblock.UserBlock
	if err := row.Scan(&ub.ID, &ub.UserID, &ub.BlockID, &ub.Completed); err != nil {
		return nil, notFound(err)
	}
	return &ub, nil
}

func (q *queries) MarkUserBlockCompleted(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, "UPDATE user_blocks SET completed = 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// ============================================================================
// Concept progress
// ============================================================================

const progressColumns = "id, user_block_id, concept_id, correct, asked, alfa, beta, score, variance, streak, mastered, " +
	"correct_a1, asked_a1, correct_a2, asked_a2, correct_b1, asked_b1, correct_b2, asked_b2"

// byTypeArgs flattens the per type tallies in column order.
func byTypeArgs(p concept.Progress) []any {
	args := make([]any, 0, 2*len(p.ByType))
	for _, t := range p.ByType {
		args = append(args, t.Correct, t.Asked)
	}
	return args
}

func (q *queries) CreateProgress(ctx context.Context, p concept.Progress) error {
	args := []any{
		p.ID, p.UserBlockID, p.ConceptID, p.Correct, p.Asked,
		p.Alfa, p.Beta, p.Score, p.Variance, p.Streak, boolToInt(p.Mastered),
	}
	args = append(args, byTypeArgs(p)...)
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO concept_progress ("+progressColumns+") VALUES ("+placeholders(len(args))+")", args...,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (q *queries) ListProgress(ctx context.Context, userBlockID string) ([]concept.Progress, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+progressColumns+" FROM concept_progress WHERE user_block_id = ? ORDER BY rowid", userBlockID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progresses []concept.Progress
	for rows.Next() {
		var p concept.Progress
		dest := []any{
			&p.ID, &p.UserBlockID, &p.ConceptID, &p.Correct, &p.Asked,
			&p.Alfa, &p.Beta, &p.Score, &p.Variance, &p.Streak, &p.Mastered,
		}
		for i := range p.ByType {
			dest = append(dest, &p.ByType[i].Correct, &p.ByType[i].Asked)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		progresses = append(progresses, p)
	}
	return progresses, rows.Err()
}

// UpdateProgress writes the estimator output. A mastered row is never
// reopened: the mastered flag can only be set here, not cleared.
func (q *queries) UpdateProgress(ctx context.Context, p concept.Progress) error {
	args := []any{p.Correct, p.Asked, p.Alfa, p.Beta, p.Score, p.Variance, p.Streak, boolToInt(p.Mastered)}
	args = append(args, byTypeArgs(p)...)
	args = append(args, p.ID)
	result, err := q.db.ExecContext(ctx, `
		UPDATE concept_progress
		SET correct = ?, asked = ?, alfa = ?, beta = ?, score = ?, variance = ?, streak = ?,
		    mastered = MAX(mastered, ?),
		    correct_a1 = ?, asked_a1 = ?, correct_a2 = ?, asked_a2 = ?,
		    correct_b1 = ?, asked_b1 = ?, correct_b2 = ?, asked_b2 = ?
		WHERE id = ?`, args...,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}
