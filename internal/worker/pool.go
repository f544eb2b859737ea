// worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
	"github.com/remaimber-it/mastery/internal/store"
)

// Queue is the durable task table the pool drains.
type Queue interface {
	ClaimGeneration(ctx context.Context, opts store.ClaimOptions, now time.Time) (*quiz.GenerationTask, error)
	HeartbeatGeneration(ctx context.Context, taskID string, now time.Time) error
	CompleteGeneration(ctx context.Context, taskID string, now time.Time) error
	FailGeneration(ctx context.Context, taskID, reason string, maxAttempts int, now time.Time) (quiz.TaskStatus, error)
	AbandonGeneration(ctx context.Context, taskID, reason string, now time.Time) error
}

// Handler runs one claimed task. Returning an error wrapped with Permanent
// abandons the task at once; any other error schedules a retry.
type Handler func(ctx context.Context, task *quiz.GenerationTask) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type Config struct {
	Workers           int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Claim             store.ClaimOptions
}

// Pool runs generation tasks from the queue on a fixed set of workers.
// Workers poll on an interval and can be woken early with Notify.
type Pool struct {
	queue     Queue
	handle    Handler
	cfg       Config
	logger    *logger.Logger
	onAbandon func(ctx context.Context, task *quiz.GenerationTask, reason string)
	now       func() time.Time

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewPool(q Queue, h Handler, cfg Config, log *logger.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.Claim.StaleAfter / 3
	}
	return &Pool{
		queue:  q,
		handle: h,
		cfg:    cfg,
		logger: log.With("component", "worker"),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// OnAbandon registers a callback for tasks that will not be retried.
func (p *Pool) OnAbandon(fn func(ctx context.Context, task *quiz.GenerationTask, reason string)) {
	p.onAbandon = fn
}

// Notify wakes an idle worker. It never blocks.
func (p *Pool) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Start launches the workers. They stop when ctx is cancelled; use Wait to
// block until they have.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, n int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			ran, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.Error("worker iteration failed", "worker", n, "error", err)
				break
			}
			if !ran {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

// RunOnce claims and runs a single task. It reports whether a task was
// claimed.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	task, err := p.queue.ClaimGeneration(ctx, p.cfg.Claim, p.now())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	log := p.logger.With("task_id", task.ID, "quiz_id", task.AdaptiveQuizID, "attempt", task.Attempts)
	// status writes must land even when the run was cancelled
	bg := context.WithoutCancel(ctx)

	// a stale task reclaimed after its last allowed attempt
	if task.Attempts > p.cfg.Claim.MaxAttempts {
		reason := "attempts exhausted"
		if task.LastError != "" {
			reason = task.LastError
		}
		p.abandon(bg, task, reason, log)
		return true, nil
	}

	start := p.now()
	err = p.run(ctx, task)
	metrics.GenerationTaskDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if err := p.queue.CompleteGeneration(bg, task.ID, p.now()); err != nil {
			return true, fmt.Errorf("complete task %s: %w", task.ID, err)
		}
		metrics.GenerationTasks.WithLabelValues("done").Inc()
		log.Info("generation task done")

	case IsPermanent(err):
		log.Error("generation task failed permanently", "error", err)
		p.abandon(bg, task, err.Error(), log)

	default:
		status, failErr := p.queue.FailGeneration(bg, task.ID, err.Error(), p.cfg.Claim.MaxAttempts, p.now())
		if failErr != nil {
			return true, fmt.Errorf("fail task %s: %w", task.ID, failErr)
		}
		if status == quiz.TaskAbandoned {
			log.Error("generation task abandoned", "error", err)
			metrics.GenerationTasks.WithLabelValues("abandoned").Inc()
			p.notifyAbandon(bg, task, err.Error())
			return true, nil
		}
		log.Warn("generation task failed, will retry", "error", err)
		metrics.GenerationTasks.WithLabelValues("retry").Inc()
	}
	return true, nil
}

// run calls the handler while a heartbeat keeps the claim fresh.
func (p *Pool) run(ctx context.Context, task *quiz.GenerationTask) (err error) {
	hbCtx, stop := context.WithCancel(ctx)
	defer stop()

	if p.cfg.HeartbeatInterval > 0 {
		go func() {
			t := time.NewTicker(p.cfg.HeartbeatInterval)
			defer t.Stop()
			for {
				select {
				case <-hbCtx.Done():
					return
				case <-t.C:
					if err := p.queue.HeartbeatGeneration(hbCtx, task.ID, p.now()); err != nil && hbCtx.Err() == nil {
						p.logger.Warn("heartbeat failed", "task_id", task.ID, "error", err)
					}
				}
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handle(ctx, task)
}

func (p *Pool) abandon(ctx context.Context, task *quiz.GenerationTask, reason string, log *logger.Logger) {
	if err := p.queue.AbandonGeneration(ctx, task.ID, reason, p.now()); err != nil {
		log.Error("failed to abandon task", "error", err)
		return
	}
	metrics.GenerationTasks.WithLabelValues("abandoned").Inc()
	p.notifyAbandon(ctx, task, reason)
}

func (p *Pool) notifyAbandon(ctx context.Context, task *quiz.GenerationTask, reason string) {
	if p.onAbandon != nil {
		p.onAbandon(ctx, task, reason)
	}
}
