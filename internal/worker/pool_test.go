package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/store"
	"github.com/remaimber-it/mastery/internal/worker"
)

// memQueue is an in-memory task table with the same claim rules as the
// store, minus timing.
type memQueue struct {
	mu    sync.Mutex
	tasks []*quiz.GenerationTask
}

func (q *memQueue) add(id string, attempts int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, &quiz.GenerationTask{ID: id, AdaptiveQuizID: "quiz-" + id, Status: quiz.TaskQueued, Attempts: attempts})
}

func (q *memQueue) get(id string) quiz.GenerationTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.ID == id {
			return *t
		}
	}
	return quiz.GenerationTask{}
}

func (q *memQueue) find(id string) *quiz.GenerationTask {
	for _, t := range q.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (q *memQueue) ClaimGeneration(_ context.Context, opts store.ClaimOptions, _ time.Time) (*quiz.GenerationTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.Status == quiz.TaskQueued || (t.Status == quiz.TaskFailed && t.Attempts < opts.MaxAttempts) {
			t.Status = quiz.TaskRunning
			t.Attempts++
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *memQueue) HeartbeatGeneration(context.Context, string, time.Time) error { return nil }

func (q *memQueue) CompleteGeneration(_ context.Context, id string, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.find(id).Status = quiz.TaskDone
	return nil
}

func (q *memQueue) FailGeneration(_ context.Context, id, reason string, maxAttempts int, _ time.Time) (quiz.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.find(id)
	t.LastError = reason
	t.Status = quiz.TaskFailed
	if t.Attempts >= maxAttempts {
		t.Status = quiz.TaskAbandoned
	}
	return t.Status, nil
}

func (q *memQueue) AbandonGeneration(_ context.Context, id, reason string, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.find(id)
	t.Status = quiz.TaskAbandoned
	t.LastError = reason
	return nil
}

func newPool(q worker.Queue, h worker.Handler) *worker.Pool {
	return worker.NewPool(q, h, worker.Config{
		Workers:           2,
		PollInterval:      time.Hour,
		HeartbeatInterval: time.Millisecond,
		Claim:             store.ClaimOptions{MaxAttempts: 2},
	}, logger.NewNop())
}

func TestRunOnce_Empty(t *testing.T) {
	p := newPool(&memQueue{}, func(context.Context, *quiz.GenerationTask) error {
		t.Fatal("handler must not run")
		return nil
	})

	ran, err := p.RunOnce(context.Background())
	if err != nil || ran {
		t.Errorf("expected no task, got ran=%v err=%v", ran, err)
	}
}

func TestRunOnce_Completes(t *testing.T) {
	q := &memQueue{}
	q.add("t1", 0)

	var got string
	p := newPool(q, func(_ context.Context, task *quiz.GenerationTask) error {
		got = task.AdaptiveQuizID
		time.Sleep(5 * time.Millisecond) // let a heartbeat fire
		return nil
	})

	ran, err := p.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("expected task to run, got ran=%v err=%v", ran, err)
	}
	if got != "quiz-t1" {
		t.Errorf("handler saw %q", got)
	}
	if s := q.get("t1").Status; s != quiz.TaskDone {
		t.Errorf("expected done, got %s", s)
	}
}

func TestRunOnce_RetryThenAbandon(t *testing.T) {
	q := &memQueue{}
	q.add("t1", 0)

	var abandoned []string
	p := newPool(q, func(context.Context, *quiz.GenerationTask) error {
		return errors.New("llm timeout")
	})
	p.OnAbandon(func(_ context.Context, task *quiz.GenerationTask, reason string) {
		abandoned = append(abandoned, task.ID+": "+reason)
	})

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := q.get("t1").Status; s != quiz.TaskFailed {
		t.Fatalf("expected failed after first attempt, got %s", s)
	}
	if len(abandoned) != 0 {
		t.Fatalf("expected no abandon yet, got %v", abandoned)
	}

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := q.get("t1").Status; s != quiz.TaskAbandoned {
		t.Fatalf("expected abandoned after max attempts, got %s", s)
	}
	if len(abandoned) != 1 || abandoned[0] != "t1: llm timeout" {
		t.Errorf("unexpected abandon callbacks: %v", abandoned)
	}
}

func TestRunOnce_PermanentAbandonsImmediately(t *testing.T) {
	q := &memQueue{}
	q.add("t1", 0)

	calls := 0
	p := newPool(q, func(context.Context, *quiz.GenerationTask) error {
		return worker.Permanent(errors.New("quiz gone"))
	})
	p.OnAbandon(func(context.Context, *quiz.GenerationTask, string) { calls++ })

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := q.get("t1").Status; s != quiz.TaskAbandoned {
		t.Errorf("expected abandoned, got %s", s)
	}
	if calls != 1 {
		t.Errorf("expected 1 abandon callback, got %d", calls)
	}
}

func TestRunOnce_PanicIsAFailure(t *testing.T) {
	q := &memQueue{}
	q.add("t1", 0)

	p := newPool(q, func(context.Context, *quiz.GenerationTask) error {
		panic("nil map")
	})

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	task := q.get("t1")
	if task.Status != quiz.TaskFailed || task.LastError == "" {
		t.Errorf("expected recorded failure, got %+v", task)
	}
}

func TestRunOnce_ExhaustedStaleTaskIsAbandoned(t *testing.T) {
	q := &memQueue{}
	q.add("t1", 2) // claim makes it attempt 3 of 2

	p := newPool(q, func(context.Context, *quiz.GenerationTask) error {
		t.Fatal("handler must not run")
		return nil
	})

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := q.get("t1").Status; s != quiz.TaskAbandoned {
		t.Errorf("expected abandoned, got %s", s)
	}
}

func TestStart_NotifyWakesWorkers(t *testing.T) {
	q := &memQueue{}
	done := make(chan string, 3)
	p := newPool(q, func(_ context.Context, task *quiz.GenerationTask) error {
		done <- task.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	// initial drain finds nothing; tasks arrive afterwards
	time.Sleep(10 * time.Millisecond)
	q.add("t1", 0)
	q.add("t2", 0)
	p.Notify()
	p.Notify()

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-done:
			seen[id] = true
		case <-timeout:
			t.Fatalf("timed out, processed %v", seen)
		}
	}

	cancel()
	p.Wait()
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad")
	err := worker.Permanent(base)
	if !worker.IsPermanent(err) || !errors.Is(err, base) {
		t.Errorf("expected permanent wrapper around base, got %v", err)
	}
	if worker.IsPermanent(base) {
		t.Error("plain error is not permanent")
	}
	if worker.Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}
