// internal/service/lifecycle.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/domain/userblock"
	"github.com/remaimber-it/mastery/internal/event"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/grader"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
	"github.com/remaimber-it/mastery/internal/infrastructure/tracing"
	"github.com/remaimber-it/mastery/internal/lock"
	"github.com/remaimber-it/mastery/internal/mastery"
	"github.com/remaimber-it/mastery/internal/scheduler"
	"github.com/remaimber-it/mastery/internal/search"
	"github.com/remaimber-it/mastery/internal/store"
)

// Dispatcher is woken after a generation task has been committed.
type Dispatcher interface {
	Notify()
}

type nopDispatcher struct{}

func (nopDispatcher) Notify() {}

// Deps are the collaborators of the lifecycle.
type Deps struct {
	Store     store.Store
	Evaluator *mastery.Evaluator
	Scheduler *scheduler.Scheduler
	Searcher  search.Searcher
	Generator generator.Generator
	Grader    grader.Grader
	Locker    lock.Locker
	Events    event.Publisher
	Logger    *logger.Logger
}

type Options struct {
	// Quizzes still generating after this long are reported as delayed.
	PreparingWindow time.Duration
	// Upper bound for one concept's search and generation.
	ConceptTimeout time.Duration
	// Concepts generated at the same time.
	Concurrency int
	// Tries per concept for transient generator failures.
	MaxRetries   int
	RetryBackoff time.Duration
	// Chunks fetched per concept.
	ChunkLimit int
}

func DefaultOptions() Options {
	return Options{
		PreparingWindow: 5 * time.Minute,
		ConceptTimeout:  3 * time.Minute,
		Concurrency:     3,
		MaxRetries:      3,
		RetryBackoff:    time.Second,
		ChunkLimit:      5,
	}
}

// QuizLifecycle drives adaptive quizzes from creation through answering
// and completion to the generation of the next version.
type QuizLifecycle struct {
	store      store.Store
	evaluator  *mastery.Evaluator
	scheduler  *scheduler.Scheduler
	searcher   search.Searcher
	generator  generator.Generator
	grader     grader.Grader
	locker     lock.Locker
	events     event.Publisher
	logger     *logger.Logger
	opts       Options
	dispatcher Dispatcher
	now        func() time.Time
}

func NewQuizLifecycle(d Deps, opts Options) *QuizLifecycle {
	defaults := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = defaults.ChunkLimit
	}
	if opts.ConceptTimeout <= 0 {
		opts.ConceptTimeout = defaults.ConceptTimeout
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if d.Events == nil {
		d.Events = event.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}

	return &QuizLifecycle{
		store:      d.Store,
		evaluator:  d.Evaluator,
		scheduler:  d.Scheduler,
		searcher:   d.Searcher,
		generator:  d.Generator,
		grader:     d.Grader,
		locker:     d.Locker,
		events:     d.Events,
		logger:     d.Logger.With("component", "lifecycle"),
		opts:       opts,
		dispatcher: nopDispatcher{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher connects the worker pool that runs generation tasks.
func (l *QuizLifecycle) SetDispatcher(d Dispatcher) {
	l.dispatcher = d
}

// SetClock replaces the time source.
func (l *QuizLifecycle) SetClock(now func() time.Time) {
	l.now = now
}

// ============================================================================
// Block start
// ============================================================================

type StartResult struct {
	UserBlock *userblock.UserBlock
	// Quiz is the lowest open version; nil only for a resumed attempt whose
	// block is already mastered.
	Quiz     *quiz.AdaptiveQuiz
	Progress []concept.Progress
	// Resumed is set when the user already had an attempt at the block.
	Resumed bool
}

// StartBlock opens a block attempt, or returns the existing one since a user
// has a single attempt per block. A new attempt gets one progress row per
// concept with the uniform prior. Its first quiz reuses the block's
// placement quiz when there is one and can be answered at once; otherwise
// version 1 is queued for generation.
func (l *QuizLifecycle) StartBlock(ctx context.Context, userID, blockID string) (*StartResult, error) {
	if userID == "" || blockID == "" {
		return nil, fmt.Errorf("%w: user id and block id are required", ErrInvalidInput)
	}

	concepts, err := l.store.ListConceptsByBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("block %s has no concepts: %w", blockID, store.ErrNotFound)
	}

	var res *StartResult
	open := func(q store.Queries) error {
		var err error
		res, err = l.openAttempt(ctx, q, userID, blockID, concepts)
		return err
	}
	err = l.store.WithinTx(ctx, open)
	if errors.Is(err, store.ErrConflict) {
		// a concurrent start for the same user and block committed first
		err = l.store.WithinTx(ctx, open)
	}
	if err != nil {
		return nil, fmt.Errorf("start block: %w", err)
	}

	if res.Resumed {
		l.logger.Info("block resumed", "user_block_id", res.UserBlock.ID, "block_id", blockID)
		return res, nil
	}

	l.logger.Info("block started",
		"user_block_id", res.UserBlock.ID,
		"block_id", blockID,
		"concepts", len(concepts),
		"placement", res.Quiz.PlacementQuizID != nil,
	)
	if !res.Quiz.ReadyForAnswering {
		l.dispatcher.Notify()
	}
	return res, nil
}

func (l *QuizLifecycle) openAttempt(ctx context.Context, q store.Queries, userID, blockID string, concepts []concept.Concept) (*StartResult, error) {
	existing, err := q.GetUserBlockByUserAndBlock(ctx, userID, blockID)
	switch {
	case err == nil:
		return resumeAttempt(ctx, q, existing)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := l.now()
	ub := userblock.New(userID, blockID)
	if err := q.CreateUserBlock(ctx, ub); err != nil {
		return nil, err
	}

	res := &StartResult{UserBlock: ub}
	for _, c := range concepts {
		p := mastery.NewProgress(ub.ID, c.ID)
		if err := q.CreateProgress(ctx, p); err != nil {
			return nil, err
		}
		res.Progress = append(res.Progress, p)
	}

	pq, err := q.GetPlacementQuizByBlock(ctx, blockID)
	switch {
	case err == nil:
		res.Quiz, err = createPlacementVersion(ctx, q, ub.ID, pq, now)
	case errors.Is(err, store.ErrNotFound):
		res.Quiz, err = createQuizVersion(ctx, q, ub.ID, 1, now)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func resumeAttempt(ctx context.Context, q store.Queries, ub *userblock.UserBlock) (*StartResult, error) {
	progress, err := q.ListProgress(ctx, ub.ID)
	if err != nil {
		return nil, err
	}
	res := &StartResult{UserBlock: ub, Progress: progress, Resumed: true}

	open, err := q.NextOpenQuiz(ctx, ub.ID)
	switch {
	case err == nil:
		res.Quiz = open
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return res, nil
}

// createPlacementVersion makes version 1 of a user block point at the
// shared placement questions. It needs no generation.
func createPlacementVersion(ctx context.Context, q store.Queries, userBlockID string, pq *quiz.PlacementQuiz, now time.Time) (*quiz.AdaptiveQuiz, error) {
	aq := quiz.NewAdaptiveQuiz(userBlockID, pq.BaseQuizID, 1, now)
	aq.PlacementQuizID = &pq.ID
	aq.ReadyForAnswering = true
	if err := q.CreateAdaptiveQuiz(ctx, aq); err != nil {
		return nil, err
	}
	return aq, nil
}

// createQuizVersion inserts an empty base quiz, the adaptive quiz pointing
// at it and the generation task that will fill it.
func createQuizVersion(ctx context.Context, q store.Queries, userBlockID string, version int, now time.Time) (*quiz.AdaptiveQuiz, error) {
	bq := quiz.NewBaseQuiz(now)
	if err := q.CreateBaseQuiz(ctx, bq); err != nil {
		return nil, err
	}
	aq := quiz.NewAdaptiveQuiz(userBlockID, bq.ID, version, now)
	if err := q.CreateAdaptiveQuiz(ctx, aq); err != nil {
		return nil, err
	}
	if _, err := q.EnqueueGeneration(ctx, aq.ID, now); err != nil {
		return nil, err
	}
	return aq, nil
}

// ============================================================================
// Finish
// ============================================================================

type FinishResult struct {
	Quiz          *quiz.AdaptiveQuiz
	Next          *quiz.AdaptiveQuiz // nil when the block is mastered
	BlockMastered bool
	Updated       []concept.Progress
}

// FinishAdaptiveQuiz completes a quiz, folds its answers into the concept
// estimates and, unless the block is now mastered, creates the next quiz
// version. Everything happens in one transaction under a per-user-block
// lock. Question generation for the next version runs later on the worker
// pool, so the returned next quiz is not ready yet.
func (l *QuizLifecycle) FinishAdaptiveQuiz(ctx context.Context, quizID string) (*FinishResult, error) {
	ctx, span := tracing.Start(ctx, "lifecycle.FinishAdaptiveQuiz", attribute.String("quiz_id", quizID))
	defer span.End()

	aq, err := l.store.GetAdaptiveQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, "user-block:"+aq.UserBlockID)
	if err != nil {
		return nil, fmt.Errorf("lock user block %s: %w", aq.UserBlockID, err)
	}
	defer unlock()

	res := &FinishResult{}
	var violations []InvariantViolation

	err = l.store.WithinTx(ctx, func(q store.Queries) error {
		aq, err := q.GetAdaptiveQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if aq.IsCompleted {
			return ErrQuizCompleted
		}
		if !aq.ReadyForAnswering {
			return ErrQuizNotReady
		}

		if err := q.MarkQuizCompleted(ctx, aq.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrQuizCompleted
			}
			return err
		}
		aq.IsCompleted = true
		res.Quiz = aq

		progresses, err := q.ListProgress(ctx, aq.UserBlockID)
		if err != nil {
			return err
		}
		grouped, orphans, err := l.answersByConcept(ctx, q, aq.ID, progresses)
		if err != nil {
			return err
		}
		for _, a := range orphans {
			violations = append(violations, InvariantViolation{
				Kind:       violationUnresolvedConcept,
				QuizID:     aq.ID,
				AnswerID:   a.ID,
				QuestionID: a.QuestionID,
			})
		}

		changed, blockDone := l.evaluator.Reevaluate(progresses, grouped)
		for _, p := range changed {
			if err := q.UpdateProgress(ctx, p); err != nil {
				return fmt.Errorf("update progress %s: %w", p.ID, err)
			}
		}
		res.Updated = changed

		if blockDone {
			res.BlockMastered = true
			return q.MarkUserBlockCompleted(ctx, aq.UserBlockID)
		}

		last, err := q.LastQuizVersion(ctx, aq.UserBlockID)
		if err != nil {
			return err
		}
		res.Next, err = createQuizVersion(ctx, q, aq.UserBlockID, last+1, l.now())
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, v := range violations {
		l.reportViolation(v)
	}
	metrics.QuizzesFinished.Inc()
	l.logger.Info("quiz finished",
		"quiz_id", res.Quiz.ID,
		"user_block_id", res.Quiz.UserBlockID,
		"updated_concepts", len(res.Updated),
		"block_mastered", res.BlockMastered,
	)

	completed := event.QuizCompleted{
		QuizID:      res.Quiz.ID,
		UserBlockID: res.Quiz.UserBlockID,
		Version:     res.Quiz.Version,
		OccurredAt:  l.now(),
	}
	if res.Next != nil {
		completed.NextQuizID = res.Next.ID
	}
	l.publish(ctx, completed)

	if res.BlockMastered {
		metrics.BlocksMastered.Inc()
		l.publishBlockMastered(ctx, res.Quiz.UserBlockID)
		return res, nil
	}

	l.dispatcher.Notify()
	return res, nil
}

// answersByConcept groups the quiz answers by concept. Answers whose
// question or concept cannot be resolved within the user block are
// returned as orphans.
func (l *QuizLifecycle) answersByConcept(ctx context.Context, q store.Queries, quizID string, progresses []concept.Progress) (map[string][]quiz.Answer, []quiz.Answer, error) {
	answers, err := q.ListAnswersByQuiz(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	if len(answers) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	questionConcept, err := q.QuestionConcepts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	tracked := make(map[string]bool, len(progresses))
	for _, p := range progresses {
		tracked[p.ConceptID] = true
	}

	grouped, orphans := mastery.GroupByConcept(answers, func(questionID string) (string, bool) {
		conceptID, ok := questionConcept[questionID]
		if !ok || !tracked[conceptID] {
			return "", false
		}
		return conceptID, true
	})
	return grouped, orphans, nil
}

func (l *QuizLifecycle) publishBlockMastered(ctx context.Context, userBlockID string) {
	e := event.BlockMastered{UserBlockID: userBlockID, OccurredAt: l.now()}
	if ub, err := l.store.GetUserBlock(ctx, userBlockID); err == nil {
		e.UserID = ub.UserID
		e.BlockID = ub.BlockID
	}
	l.publish(ctx, e)
}

func (l *QuizLifecycle) publish(ctx context.Context, e event.Event) {
	if err := l.events.Publish(ctx, e); err != nil {
		l.logger.Warn("failed to publish event", "routing_key", e.RoutingKey(), "error", err)
	}
}
