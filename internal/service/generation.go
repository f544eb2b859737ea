package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/event"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/id"
	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
	"github.com/remaimber-it/mastery/internal/infrastructure/tracing"
	"github.com/remaimber-it/mastery/internal/scheduler"
	"github.com/remaimber-it/mastery/internal/store"
	"github.com/remaimber-it/mastery/internal/worker"
)

// RunGeneration fills the base quiz behind a generation task. It is the
// worker pool handler.
//
// The concept plan is computed on the first run and stored on the task.
// Concepts that already have questions are skipped, so a retry only
// regenerates the concepts that failed before. Each concept runs with its
// own timeout and a failing concept does not stop the others. The quiz is
// released for answering only once every planned concept has questions.
func (l *QuizLifecycle) RunGeneration(ctx context.Context, task *quiz.GenerationTask) error {
	ctx, span := tracing.Start(ctx, "lifecycle.RunGeneration",
		attribute.String("task_id", task.ID),
		attribute.String("quiz_id", task.AdaptiveQuizID),
	)
	defer span.End()

	aq, err := l.store.GetAdaptiveQuiz(ctx, task.AdaptiveQuizID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return worker.Permanent(err)
		}
		return err
	}
	if aq.ReadyForAnswering || aq.IsCompleted {
		return nil
	}

	ub, err := l.store.GetUserBlock(ctx, aq.UserBlockID)
	if err != nil {
		return err
	}

	plan, err := l.ensurePlan(ctx, task, aq)
	if err != nil {
		return err
	}

	concepts, err := l.store.ListConceptsByBlock(ctx, ub.BlockID)
	if err != nil {
		return err
	}
	byID := make(map[string]concept.Concept, len(concepts))
	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c
		names = append(names, c.Name)
	}

	for _, pc := range plan {
		if _, ok := byID[pc.ConceptID]; !ok {
			return worker.Permanent(fmt.Errorf("planned concept %s is not in block %s", pc.ConceptID, ub.BlockID))
		}
	}

	existing, err := l.store.CountQuestionsByConcept(ctx, aq.BaseQuizID)
	if err != nil {
		return err
	}

	log := l.logger.With("quiz_id", aq.ID, "task_id", task.ID, "attempt", task.Attempts)

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	offset := 0
	for _, pc := range plan {
		start := offset
		offset += pc.QuestionCount

		if existing[pc.ConceptID] > 0 {
			continue
		}
		c := byID[pc.ConceptID]

		g.Go(func() error {
			err := l.generateConcept(gctx, aq, c, pc, siblingsOf(names, c.Name), start)
			if err != nil {
				metrics.ConceptGenerations.WithLabelValues("failed").Inc()
				log.Warn("concept generation failed", "concept_id", c.ID, "concept", c.Name, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("concept %s: %w", c.Name, err))
				mu.Unlock()
				return nil
			}
			metrics.ConceptGenerations.WithLabelValues("succeeded").Inc()
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		err := fmt.Errorf("%d of %d concepts failed: %w", len(failures), len(plan), errors.Join(failures...))
		span.RecordError(err)
		return err
	}

	if err := l.store.MarkQuizReady(ctx, aq.ID); err != nil {
		return err
	}

	log.Info("quiz ready", "concepts", len(plan), "questions", offset)
	l.publish(ctx, event.QuizReady{
		QuizID:      aq.ID,
		UserBlockID: aq.UserBlockID,
		Version:     aq.Version,
		Questions:   offset,
		OccurredAt:  l.now(),
	})
	return nil
}

// ensurePlan returns the stored plan of the task or computes and stores a
// new one from the current concept estimates.
func (l *QuizLifecycle) ensurePlan(ctx context.Context, task *quiz.GenerationTask, aq *quiz.AdaptiveQuiz) ([]quiz.PlannedConcept, error) {
	if len(task.Plan) > 0 {
		return task.Plan, nil
	}

	progresses, err := l.store.ListProgress(ctx, aq.UserBlockID)
	if err != nil {
		return nil, err
	}
	plan := l.scheduler.Plan(progresses)
	if len(plan) == 0 {
		return nil, worker.Permanent(fmt.Errorf("user block %s: %w", aq.UserBlockID, ErrBlockMastered))
	}

	if err := l.store.SaveGenerationPlan(ctx, task.ID, plan, l.now()); err != nil {
		return nil, err
	}
	task.Plan = plan
	return plan, nil
}

func (l *QuizLifecycle) generateConcept(ctx context.Context, aq *quiz.AdaptiveQuiz, c concept.Concept, pc quiz.PlannedConcept, siblings []string, orderStart int) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.ConceptTimeout)
	defer cancel()

	ctx, span := tracing.Start(ctx, "lifecycle.generateConcept",
		attribute.String("concept_id", c.ID),
		attribute.Int("questions", pc.QuestionCount),
	)
	defer span.End()

	var chunks []string
	if l.searcher != nil {
		var err error
		chunks, err = l.searcher.ChunksByConcept(ctx, c.Name, c.BlockID, l.opts.ChunkLimit)
		if err != nil {
			return fmt.Errorf("search chunks: %w", err)
		}
	}

	history, err := l.store.ConceptHistory(ctx, aq.UserBlockID, c.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	req := generator.Request{
		Concept:  c.Name,
		Siblings: siblings,
		Chunks:   chunks,
		Mix:      scheduler.Mix(pc.QuestionCount, pc.Score),
		History:  history,
	}

	questions, err := l.generateWithRetry(ctx, req)
	if err != nil {
		span.RecordError(err)
		return err
	}

	return l.store.WithinTx(ctx, func(q store.Queries) error {
		for i, gq := range questions {
			if err := q.CreateQuestion(ctx, toQuizQuestion(aq.BaseQuizID, c.ID, orderStart+i, gq)); err != nil {
				return err
			}
		}
		return nil
	})
}

// generateWithRetry retries transient generator failures with exponential
// backoff. Once the tries run out the failure counts as a validation error.
func (l *QuizLifecycle) generateWithRetry(ctx context.Context, req generator.Request) ([]generator.Question, error) {
	b := backoff.NewExponentialBackOff()
	if l.opts.RetryBackoff > 0 {
		b.InitialInterval = l.opts.RetryBackoff
	}
	b.MaxInterval = 30 * time.Second

	op := func() ([]generator.Question, error) {
		qs, err := l.generator.Generate(ctx, req)
		if err != nil && !generator.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return qs, err
	}

	questions, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(l.opts.MaxRetries)),
	)
	if err != nil && generator.IsTransient(err) {
		return nil, &generator.ValidationError{Reason: "generator kept failing", Wrapped: err}
	}
	return questions, err
}

func toQuizQuestion(baseQuizID, conceptID string, order int, gq generator.Question) *quiz.Question {
	q := &quiz.Question{
		ID:                id.GenerateID(),
		BaseQuizID:        baseQuizID,
		ConceptID:         conceptID,
		QuestionText:      gq.QuestionText,
		CorrectAnswerText: gq.CorrectAnswerText,
		OrderIndex:        order,
		CodeSnippet:       gq.CodeSnippet,
		QuestionType:      gq.QuestionType,
	}
	for _, o := range gq.Options {
		q.Options = append(q.Options, quiz.Option{
			ID:         id.GenerateID(),
			QuestionID: q.ID,
			OptionText: o.OptionText,
			IsCorrect:  o.IsCorrect,
		})
	}
	return q
}

func siblingsOf(names []string, self string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}

// HandleAbandoned is called by the worker pool when a generation task
// gives up for good.
func (l *QuizLifecycle) HandleAbandoned(ctx context.Context, task *quiz.GenerationTask, reason string) {
	l.logger.Error("quiz generation abandoned",
		"quiz_id", task.AdaptiveQuizID,
		"task_id", task.ID,
		"attempts", task.Attempts,
		"reason", reason,
	)
	l.publish(ctx, event.QuizGenerationFailed{
		QuizID:     task.AdaptiveQuizID,
		TaskID:     task.ID,
		Attempts:   task.Attempts,
		Reason:     reason,
		OccurredAt: l.now(),
	})
}
