package service

import (
	"context"
	"fmt"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/store"
)

// ChunkIndexer stores learning material so it can be searched per concept.
type ChunkIndexer interface {
	Index(ctx context.Context, blockID string, texts []string) ([]string, error)
}

// ContentService manages the concepts and material of a block.
type ContentService struct {
	store   store.Store
	indexer ChunkIndexer
	logger  *logger.Logger
}

func NewContentService(s store.Store, indexer ChunkIndexer, log *logger.Logger) *ContentService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ContentService{store: s, indexer: indexer, logger: log.With("component", "content")}
}

type ConceptInput struct {
	Name            string
	DifficultyIndex int
}

// CreateConcepts adds concepts to a block. Either all are created or none.
func (s *ContentService) CreateConcepts(ctx context.Context, blockID string, inputs []ConceptInput) ([]concept.Concept, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no concepts given", ErrInvalidInput)
	}
	created := make([]concept.Concept, 0, len(inputs))
	for _, in := range inputs {
		c, err := concept.New(blockID, in.Name, in.DifficultyIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		created = append(created, *c)
	}

	err := s.store.WithinTx(ctx, func(q store.Queries) error {
		for i := range created {
			if err := q.CreateConcept(ctx, &created[i]); err != nil {
				return fmt.Errorf("create concept %q: %w", created[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("concepts created", "block_id", blockID, "count", len(created))
	return created, nil
}

func (s *ContentService) ListConcepts(ctx context.Context, blockID string) ([]concept.Concept, error) {
	return s.store.ListConceptsByBlock(ctx, blockID)
}

// IndexChunks stores the material of a block for concept search.
func (s *ContentService) IndexChunks(ctx context.Context, blockID string, texts []string) ([]string, error) {
	ids, err := s.indexer.Index(ctx, blockID, texts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("chunks indexed", "block_id", blockID, "count", len(ids))
	return ids, nil
}
