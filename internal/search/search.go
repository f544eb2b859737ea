// Package search retrieves block material relevant to a concept.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/remaimber-it/mastery/internal/id"
)

// Searcher returns ranked text chunks of a block that relate to a concept.
type Searcher interface {
	ChunksByConcept(ctx context.Context, conceptName, blockID string, limit int) ([]string, error)
}

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
    chunk_id UNINDEXED,
    block_id UNINDEXED,
    text,
    tokenize = 'unicode61 remove_diacritics 2'
);
`

// SQLiteSearcher keeps chunks in an FTS5 table and ranks them with bm25.
type SQLiteSearcher struct {
	db *sql.DB
}

var _ Searcher = (*SQLiteSearcher)(nil)

func NewSQLite(db *sql.DB) (*SQLiteSearcher, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create chunks index: %w", err)
	}
	return &SQLiteSearcher{db: db}, nil
}

// Index stores text chunks for a block and returns their ids. Blank chunks
// are skipped.
func (s *SQLiteSearcher) Index(ctx context.Context, blockID string, texts []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ids []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunkID := id.GenerateID()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (chunk_id, block_id, text) VALUES (?, ?, ?)", chunkID, blockID, text,
		); err != nil {
			return nil, err
		}
		ids = append(ids, chunkID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteSearcher) ChunksByConcept(ctx context.Context, conceptName, blockID string, limit int) ([]string, error) {
	query := matchQuery(conceptName)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM chunks
		WHERE chunks MATCH ? AND block_id = ?
		ORDER BY rank
		LIMIT ?`,
		query, blockID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks for %q: %w", conceptName, err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		chunks = append(chunks, text)
	}
	return chunks, rows.Err()
}

// matchQuery turns free text into an FTS5 query that matches any of its
// words. Each word is quoted so FTS5 operators in the input are inert.
func matchQuery(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
