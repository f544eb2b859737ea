package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// ============================================================================
// Quizzes
// ============================================================================

func (q *queries) CreateBaseQuiz(ctx context.Context, bq *quiz.BaseQuiz) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO base_quizzes (id, created_at) VALUES (?, ?)", bq.ID, toNanos(bq.CreatedAt),
	)
	return err
}

// CreateAdaptiveQuiz returns ErrConflict when the version is already taken
// for the user block.
func (q *queries) CreateAdaptiveQuiz(ctx context.Context, aq *quiz.AdaptiveQuiz) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO adaptive_quizzes
		    (id, user_block_id, base_quiz_id, version, is_completed, ready_for_answering, placement_quiz_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		aq.ID, aq.UserBlockID, aq.BaseQuizID, aq.Version,
		boolToInt(aq.IsCompleted), boolToInt(aq.ReadyForAnswering), aq.PlacementQuizID, toNanos(aq.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("adaptive quiz version %d: %w", aq.Version, ErrConflict)
	}
	return err
}

const adaptiveQuizColumns = "id, user_block_id, base_quiz_id, version, is_completed, ready_for_answering, placement_quiz_id, created_at"

func scanAdaptiveQuiz(row *sql.Row) (*quiz.AdaptiveQuiz, error) {
	var (
		aq        quiz.AdaptiveQuiz
		placement sql.NullString
		createdAt int64
	)
	err := row.Scan(&aq.ID, &aq.UserBlockID, &aq.BaseQuizID, &aq.Version,
		&aq.IsCompleted, &aq.ReadyForAnswering, &placement, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	if placement.Valid {
		aq.PlacementQuizID = &placement.String
	}
	aq.CreatedAt = fromNanos(createdAt)
	return &aq, nil
}

func (q *queries) GetAdaptiveQuiz(ctx context.Context, id string) (*quiz.AdaptiveQuiz, error) {
	return scanAdaptiveQuiz(q.db.QueryRowContext(ctx,
		"SELECT "+adaptiveQuizColumns+" FROM adaptive_quizzes WHERE id = ?", id,
	))
}

// LastQuizVersion returns 0 when the user block has no quiz yet.
func (q *queries) LastQuizVersion(ctx context.Context, userBlockID string) (int, error) {
	var version int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM adaptive_quizzes WHERE user_block_id = ?", userBlockID,
	).Scan(&version)
	return version, err
}

func (q *queries) NextOpenQuiz(ctx context.Context, userBlockID string) (*quiz.AdaptiveQuiz, error) {
	return scanAdaptiveQuiz(q.db.QueryRowContext(ctx,
		"SELECT "+adaptiveQuizColumns+` FROM adaptive_quizzes
		WHERE user_block_id = ? AND is_completed = 0
		ORDER BY version LIMIT 1`, userBlockID,
	))
}

// MarkQuizCompleted flips is_completed once. A second call, or a concurrent
// one that lost the race, gets ErrConflict.
func (q *queries) MarkQuizCompleted(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE adaptive_quizzes SET is_completed = 1 WHERE id = ? AND is_completed = 0", id,
	)
	if err != nil {
		return err
	}
	if err := expectOne(result); err != nil {
		if _, getErr := q.GetAdaptiveQuiz(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("quiz %s already completed: %w", id, ErrConflict)
	}
	return nil
}

func (q *queries) MarkQuizReady(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE adaptive_quizzes SET ready_for_answering = 1 WHERE id = ?", id,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// CreatePlacementQuiz returns ErrConflict when the block already has one.
func (q *queries) CreatePlacementQuiz(ctx context.Context, pq *quiz.PlacementQuiz) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO placement_quizzes (id, block_id, base_quiz_id, created_at) VALUES (?, ?, ?, ?)",
		pq.ID, pq.BlockID, pq.BaseQuizID, toNanos(pq.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("placement quiz for block %s: %w", pq.BlockID, ErrConflict)
	}
	return err
}

func (q *queries) GetPlacementQuizByBlock(ctx context.Context, blockID string) (*quiz.PlacementQuiz, error) {
	var (
		pq        quiz.PlacementQuiz
		createdAt int64
	)
	err := q.db.QueryRowContext(ctx,
		"SELECT id, block_id, base_quiz_id, created_at FROM placement_quizzes WHERE block_id = ?", blockID,
	).Scan(&pq.ID, &pq.BlockID, &pq.BaseQuizID, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	pq.CreatedAt = fromNanos(createdAt)
	return &pq, nil
}

// ============================================================================
// Questions
// ============================================================================

// CreateQuestion inserts the question and its options.
func (q *queries) CreateQuestion(ctx context.Context, question *quiz.Question) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO base_questions
		    (id, base_quiz_id, concept_id, question_text, correct_answer_text, order_index, code_snippet, question_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		question.ID, question.BaseQuizID, question.ConceptID, question.QuestionText,
		question.CorrectAnswerText, question.OrderIndex, question.CodeSnippet, string(question.QuestionType),
	)
	if err != nil {
		return err
	}

	for i, opt := range question.Options {
		_, err := q.db.ExecContext(ctx,
			"INSERT INTO base_options (id, base_question_id, option_text, is_correct, position) VALUES (?, ?, ?, ?, ?)",
			opt.ID, question.ID, opt.OptionText, boolToInt(opt.IsCorrect), i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const questionColumns = "id, base_quiz_id, concept_id, question_text, correct_answer_text, order_index, code_snippet, question_type"

func scanQuestion(scan func(dest ...any) error) (quiz.Question, error) {
	var (
		question quiz.Question
		qt       string
	)
	err := scan(&question.ID, &question.BaseQuizID, &question.ConceptID, &question.QuestionText,
		&question.CorrectAnswerText, &question.OrderIndex, &question.CodeSnippet, &qt)
	question.QuestionType = quiz.QuestionType(qt)
	return question, err
}

func (q *queries) GetQuestion(ctx context.Context, id string) (*quiz.Question, error) {
	question, err := scanQuestion(q.db.QueryRowContext(ctx,
		"SELECT "+questionColumns+" FROM base_questions WHERE id = ?", id,
	).Scan)
	if err != nil {
		return nil, notFound(err)
	}

	options, err := q.listOptions(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	question.Options = options[id]
	return &question, nil
}

func (q *queries) ListQuestionsByBaseQuiz(ctx context.Context, baseQuizID string) ([]quiz.Question, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+questionColumns+" FROM base_questions WHERE base_quiz_id = ? ORDER BY order_index, rowid", baseQuizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		questions []quiz.Question
		ids       []string
	)
	for rows.Next() {
		question, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
		ids = append(ids, question.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return questions, nil
	}
	options, err := q.listOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Options = options[questions[i].ID]
	}
	return questions, nil
}

func (q *queries) listOptions(ctx context.Context, questionIDs []string) (map[string][]quiz.Option, error) {
	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		args[i] = id
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT id, base_question_id, option_text, is_correct FROM base_options WHERE base_question_id IN ("+
			placeholders(len(questionIDs))+") ORDER BY base_question_id, position", args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make(map[string][]quiz.Option)
	for rows.Next() {
		var opt quiz.Option
		if err := rows.Scan(&opt.ID, &opt.QuestionID, &opt.OptionText, &opt.IsCorrect); err != nil {
			return nil, err
		}
		options[opt.QuestionID] = append(options[opt.QuestionID], opt)
	}
	return options, rows.Err()
}

// QuestionConcepts maps question ids to their concept ids. Unknown ids are
// absent from the result.
func (q *queries) QuestionConcepts(ctx context.Context, questionIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, concept_id FROM base_questions WHERE id IN ("+placeholders(len(questionIDs))+")", args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var questionID, conceptID string
		if err := rows.Scan(&questionID, &conceptID); err != nil {
			return nil, err
		}
		out[questionID] = conceptID
	}
	return out, rows.Err()
}

func (q *queries) CountQuestionsByConcept(ctx context.Context, baseQuizID string) (map[string]int, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT concept_id, COUNT(*) FROM base_questions WHERE base_quiz_id = ? GROUP BY concept_id", baseQuizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var conceptID string
		var n int
		if err := rows.Scan(&conceptID, &n); err != nil {
			return nil, err
		}
		counts[conceptID] = n
	}
	return counts, rows.Err()
}

// ConceptHistory lists every answered question of a concept within a user
// block, oldest first.
func (q *queries) ConceptHistory(ctx context.Context, userBlockID, conceptID string) ([]quiz.HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT bq.question_text, bq.correct_answer_text, a.is_correct
		FROM adaptive_quiz_answers a
		JOIN base_questions bq ON bq.id = a.base_question_id
		JOIN adaptive_quizzes aq ON aq.id = a.adaptive_quiz_id
		WHERE aq.user_block_id = ? AND bq.concept_id = ?
		ORDER BY a.created_at, a.rowid`,
		userBlockID, conceptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []quiz.HistoryEntry
	for rows.Next() {
		var h quiz.HistoryEntry
		if err := rows.Scan(&h.QuestionText, &h.CorrectAnswerText, &h.IsCorrect); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ============================================================================
// Answers
// ============================================================================

// CreateAnswer checks that the quiz is open in the same statement as the
// insert, so an answer cannot slip in after the quiz was completed.
func (q *queries) CreateAnswer(ctx context.Context, a *quiz.Answer) error {
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO adaptive_quiz_answers (id, adaptive_quiz_id, base_question_id, answer_text, is_correct, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (
		    SELECT 1 FROM adaptive_quizzes
		    WHERE id = ? AND is_completed = 0 AND ready_for_answering = 1
		)`,
		a.ID, a.AdaptiveQuizID, a.QuestionID, a.AnswerText, boolToInt(a.IsCorrect), toNanos(a.CreatedAt),
		a.AdaptiveQuizID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("question %s already answered: %w", a.QuestionID, ErrConflict)
	}
	if err != nil {
		return err
	}
	if err := expectOne(result); err != nil {
		return fmt.Errorf("quiz %s: %w", a.AdaptiveQuizID, ErrQuizClosed)
	}
	return nil
}

// ListAnswersByQuiz returns answers in submission order.
func (q *queries) ListAnswersByQuiz(ctx context.Context, quizID string) ([]quiz.Answer, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT a.id, a.adaptive_quiz_id, a.base_question_id, a.answer_text, a.is_correct, a.created_at,
		       COALESCE(bq.question_type, '')
		FROM adaptive_quiz_answers a
		LEFT JOIN base_questions bq ON bq.id = a.base_question_id
		WHERE a.adaptive_quiz_id = ?
		ORDER BY a.created_at, a.rowid`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []quiz.Answer
	for rows.Next() {
		var (
			a         quiz.Answer
			createdAt int64
			qt        string
		)
		if err := rows.Scan(&a.ID, &a.AdaptiveQuizID, &a.QuestionID, &a.AnswerText, &a.IsCorrect, &createdAt, &qt); err != nil {
			return nil, err
		}
		a.CreatedAt = fromNanos(createdAt)
		a.QuestionType = quiz.QuestionType(qt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
