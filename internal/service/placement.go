package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
	"github.com/remaimber-it/mastery/internal/infrastructure/tracing"
	"github.com/remaimber-it/mastery/internal/store"
)

// placementMix asks one question of every type per concept.
var placementMix = quiz.TypeMix{TheoryChoice: 1, FillBlank: 1, PracticeChoice: 1, PracticeCode: 1}

type PlacementResult struct {
	Quiz      *quiz.PlacementQuiz
	Questions []quiz.Question
	// Created is false when the block already had a placement quiz.
	Created bool
}

// CreatePlacementQuiz generates the placement quiz of a block: one question
// of each type for every concept, easiest concepts first. A block has one
// placement quiz, shared by all learners, so later calls return the
// existing one. Nothing is stored unless every concept got its questions.
func (l *QuizLifecycle) CreatePlacementQuiz(ctx context.Context, blockID string) (*PlacementResult, error) {
	if blockID == "" {
		return nil, fmt.Errorf("%w: block id is required", ErrInvalidInput)
	}

	ctx, span := tracing.Start(ctx, "lifecycle.CreatePlacementQuiz", attribute.String("block_id", blockID))
	defer span.End()

	unlock, err := l.locker.Lock(ctx, "placement:"+blockID)
	if err != nil {
		return nil, fmt.Errorf("lock block %s: %w", blockID, err)
	}
	defer unlock()

	pq, err := l.store.GetPlacementQuizByBlock(ctx, blockID)
	switch {
	case err == nil:
		questions, err := l.store.ListQuestionsByBaseQuiz(ctx, pq.BaseQuizID)
		if err != nil {
			return nil, err
		}
		return &PlacementResult{Quiz: pq, Questions: questions}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	concepts, err := l.store.ListConceptsByBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("block %s has no concepts: %w", blockID, store.ErrNotFound)
	}
	sort.SliceStable(concepts, func(i, j int) bool {
		return concepts[i].DifficultyIndex < concepts[j].DifficultyIndex
	})
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = c.Name
	}

	generated := make([][]generator.Question, len(concepts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, c := range concepts {
		g.Go(func() error {
			qs, err := l.generatePlacement(gctx, c, siblingsOf(names, c.Name))
			if err != nil {
				metrics.ConceptGenerations.WithLabelValues("failed").Inc()
				return fmt.Errorf("concept %s: %w", c.Name, err)
			}
			metrics.ConceptGenerations.WithLabelValues("succeeded").Inc()
			generated[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate placement quiz: %w", err)
	}

	now := l.now()
	bq := quiz.NewBaseQuiz(now)
	res := &PlacementResult{Quiz: quiz.NewPlacementQuiz(blockID, bq.ID, now), Created: true}

	err = l.store.WithinTx(ctx, func(q store.Queries) error {
		if err := q.CreateBaseQuiz(ctx, bq); err != nil {
			return err
		}
		order := 0
		for i, c := range concepts {
			for _, gq := range generated[i] {
				question := toQuizQuestion(bq.ID, c.ID, order, gq)
				if err := q.CreateQuestion(ctx, question); err != nil {
					return err
				}
				res.Questions = append(res.Questions, *question)
				order++
			}
		}
		return q.CreatePlacementQuiz(ctx, res.Quiz)
	})
	if err != nil {
		return nil, fmt.Errorf("store placement quiz: %w", err)
	}

	l.logger.Info("placement quiz created",
		"block_id", blockID,
		"placement_quiz_id", res.Quiz.ID,
		"concepts", len(concepts),
		"questions", len(res.Questions),
	)
	return res, nil
}

func (l *QuizLifecycle) generatePlacement(ctx context.Context, c concept.Concept, siblings []string) ([]generator.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.ConceptTimeout)
	defer cancel()

	var chunks []string
	if l.searcher != nil {
		var err error
		chunks, err = l.searcher.ChunksByConcept(ctx, c.Name, c.BlockID, l.opts.ChunkLimit)
		if err != nil {
			return nil, fmt.Errorf("search chunks: %w", err)
		}
	}

	return l.generateWithRetry(ctx, generator.Request{
		Concept:  c.Name,
		Siblings: siblings,
		Chunks:   chunks,
		Mix:      placementMix,
	})
}
