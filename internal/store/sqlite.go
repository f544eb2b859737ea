// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS concepts (
    id TEXT PRIMARY KEY,
    block_id TEXT NOT NULL,
    name TEXT NOT NULL,
    difficulty_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_concepts_block ON concepts(block_id);

CREATE TABLE IF NOT EXISTS user_blocks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    block_id TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    UNIQUE (user_id, block_id)
);

CREATE TABLE IF NOT EXISTS concept_progress (
    id TEXT PRIMARY KEY,
    user_block_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    correct INTEGER NOT NULL DEFAULT 0,
    asked INTEGER NOT NULL DEFAULT 0,
    alfa REAL NOT NULL,
    beta REAL NOT NULL,
    score REAL NOT NULL,
    variance REAL NOT NULL,
    streak INTEGER NOT NULL DEFAULT 0,
    mastered INTEGER NOT NULL DEFAULT 0,
    correct_a1 INTEGER NOT NULL DEFAULT 0,
    asked_a1 INTEGER NOT NULL DEFAULT 0,
    correct_a2 INTEGER NOT NULL DEFAULT 0,
    asked_a2 INTEGER NOT NULL DEFAULT 0,
    correct_b1 INTEGER NOT NULL DEFAULT 0,
    asked_b1 INTEGER NOT NULL DEFAULT 0,
    correct_b2 INTEGER NOT NULL DEFAULT 0,
    asked_b2 INTEGER NOT NULL DEFAULT 0,
    UNIQUE (user_block_id, concept_id),
    FOREIGN KEY (user_block_id) REFERENCES user_blocks(id),
    FOREIGN KEY (concept_id) REFERENCES concepts(id)
);

CREATE TABLE IF NOT EXISTS base_quizzes (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS placement_quizzes (
    id TEXT PRIMARY KEY,
    block_id TEXT NOT NULL UNIQUE,
    base_quiz_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (base_quiz_id) REFERENCES base_quizzes(id)
);

CREATE TABLE IF NOT EXISTS adaptive_quizzes (
    id TEXT PRIMARY KEY,
    user_block_id TEXT NOT NULL,
    base_quiz_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    is_completed INTEGER NOT NULL DEFAULT 0,
    ready_for_answering INTEGER NOT NULL DEFAULT 0,
    placement_quiz_id TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE (user_block_id, version),
    FOREIGN KEY (user_block_id) REFERENCES user_blocks(id),
    FOREIGN KEY (base_quiz_id) REFERENCES base_quizzes(id),
    FOREIGN KEY (placement_quiz_id) REFERENCES placement_quizzes(id)
);

CREATE TABLE IF NOT EXISTS base_questions (
    id TEXT PRIMARY KEY,
    base_quiz_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    question_text TEXT NOT NULL,
    correct_answer_text TEXT NOT NULL,
    order_index INTEGER NOT NULL,
    code_snippet TEXT NOT NULL DEFAULT '',
    question_type TEXT NOT NULL,
    FOREIGN KEY (base_quiz_id) REFERENCES base_quizzes(id) ON DELETE CASCADE,
    FOREIGN KEY (concept_id) REFERENCES concepts(id)
);
CREATE INDEX IF NOT EXISTS idx_base_questions_quiz ON base_questions(base_quiz_id);

CREATE TABLE IF NOT EXISTS base_options (
    id TEXT PRIMARY KEY,
    base_question_id TEXT NOT NULL,
    option_text TEXT NOT NULL,
    is_correct INTEGER NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (base_question_id) REFERENCES base_questions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS adaptive_quiz_answers (
    id TEXT PRIMARY KEY,
    adaptive_quiz_id TEXT NOT NULL,
    base_question_id TEXT NOT NULL,
    answer_text TEXT NOT NULL,
    is_correct INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (adaptive_quiz_id, base_question_id),
    FOREIGN KEY (adaptive_quiz_id) REFERENCES adaptive_quizzes(id),
    FOREIGN KEY (base_question_id) REFERENCES base_questions(id)
);
CREATE INDEX IF NOT EXISTS idx_answers_quiz ON adaptive_quiz_answers(adaptive_quiz_id);

CREATE TABLE IF NOT EXISTS generation_tasks (
    id TEXT PRIMARY KEY,
    adaptive_quiz_id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    last_error_at INTEGER,
    heartbeat_at INTEGER,
    plan TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (adaptive_quiz_id) REFERENCES adaptive_quizzes(id)
);
CREATE INDEX IF NOT EXISTS idx_generation_tasks_status ON generation_tasks(status);
`

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements Queries over a connection or a transaction.
type queries struct {
	db dbtx
}

type SQLiteStore struct {
	*queries
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection keeps transactions
	// from tripping over each other with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{queries: &queries{db: db}, db: db}, nil
}

// DB exposes the underlying handle for components that keep their own
// tables in the same database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithinTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ============================================================================
// Helpers
// ============================================================================

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// expectOne turns an update that matched nothing into ErrNotFound.
func expectOne(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
