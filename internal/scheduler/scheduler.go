// Package scheduler provides the durable task queue that decouples
// transactional commands from slow generation calls. A command
// enqueues a task as its last act; the dispatcher claims the task
// after the enqueue has committed and runs the registered handler on
// its own goroutine, outside any store transaction.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/promptkit/promptkit/internal/db"
)

// HandlerFunc is the callback invoked when a task of its kind is
// claimed. The payload is the JSON document passed to Enqueue.
// A returned error marks the task failed; it never propagates to the
// command that enqueued the task.
type HandlerFunc func(ctx context.Context, payload []byte) error

// pollInterval bounds how long a freshly enqueued task can sit
// unclaimed when the wake nudge is missed.
const pollInterval = 500 * time.Millisecond

// Scheduler claims pending tasks from the store and dispatches them
// to registered handlers, bounded by a global concurrency semaphore.
type Scheduler struct {
	tasks    *db.TaskStore
	handlers map[string]HandlerFunc
	sem      *semaphore.Weighted
	wake     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New creates a Scheduler that allows up to maxConcurrent tasks to
// execute simultaneously.
func New(tasks *db.TaskStore, maxConcurrent int64) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		tasks:    tasks,
		handlers: make(map[string]HandlerFunc),
		sem:      semaphore.NewWeighted(maxConcurrent),
		wake:     make(chan struct{}, 1),
	}
}

// Register binds a handler to a task kind. Must be called before Start.
func (s *Scheduler) Register(kind string, fn HandlerFunc) {
	s.mu.Lock()
	s.handlers[kind] = fn
	s.mu.Unlock()
}

// marshalTask validates the task kind and serializes the payload.
func (s *Scheduler) marshalTask(kind string, payload interface{}) (string, error) {
	s.mu.RLock()
	_, known := s.handlers[kind]
	s.mu.RUnlock()
	if !known {
		return "", fmt.Errorf("no handler registered for task kind %q", kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}
	return string(data), nil
}

// Enqueue persists a task for asynchronous execution and nudges the
// dispatcher.
func (s *Scheduler) Enqueue(ctx context.Context, kind string, payload interface{}) (int64, error) {
	data, err := s.marshalTask(kind, payload)
	if err != nil {
		return 0, err
	}

	id, err := s.tasks.Enqueue(ctx, kind, data)
	if err != nil {
		return 0, err
	}

	s.Nudge()
	return id, nil
}

// EnqueueTx persists a task through the given store view, typically a
// transaction opened by the caller, so the task row commits atomically
// with the command's own writes. A claimed task then always observes
// the effects of the command that enqueued it, and a crash between
// command and enqueue cannot strand the session. Call Nudge after the
// transaction commits.
func (s *Scheduler) EnqueueTx(ctx context.Context, tx *db.Store, kind string, payload interface{}) (int64, error) {
	data, err := s.marshalTask(kind, payload)
	if err != nil {
		return 0, err
	}
	return db.NewTaskStore(tx).Enqueue(ctx, kind, data)
}

// Nudge wakes the dispatch loop without waiting for the poll interval.
func (s *Scheduler) Nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start recovers tasks interrupted by a previous crash and begins the
// dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	reset, err := s.tasks.ResetRunning(s.ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		log.Warn().Int64("tasks", reset).Msg("Re-queued tasks interrupted by restart")
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop cancels the dispatch loop and waits for in-flight handlers.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// run drains pending tasks, sleeping on the wake channel when the
// queue is empty.
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		task, err := s.tasks.ClaimNext(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to claim task")
		}

		if task == nil {
			select {
			case <-s.wake:
			case <-time.After(pollInterval):
			case <-s.ctx.Done():
				return
			}
			continue
		}

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}

		s.wg.Add(1)
		go func(task *db.Task) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.execute(task)
		}(task)
	}
}

// execute runs the handler for a claimed task and records the outcome.
// Outcome writes use a detached context so a graceful stop can still
// record a handler that finished during shutdown.
func (s *Scheduler) execute(task *db.Task) {
	s.mu.RLock()
	handler, ok := s.handlers[task.Kind]
	s.mu.RUnlock()

	if !ok {
		log.Error().Str("kind", task.Kind).Int64("taskId", task.ID).Msg("No handler for task kind")
		_ = s.tasks.MarkFailed(context.Background(), task.ID, fmt.Errorf("no handler for kind %q", task.Kind))
		return
	}

	start := time.Now()
	err := handler(s.ctx, []byte(task.Payload))
	if err != nil {
		// A handler interrupted by Stop has not failed, it just did
		// not finish. Re-queue it so the next run delivers it again;
		// marking it failed would strand the session, since failed is
		// terminal and ResetRunning never revisits it.
		if s.ctx.Err() != nil {
			log.Warn().
				Str("kind", task.Kind).
				Int64("taskId", task.ID).
				Msg("Task interrupted by shutdown, re-queued")
			_ = s.tasks.Requeue(context.Background(), task.ID)
			return
		}
		log.Error().Err(err).
			Str("kind", task.Kind).
			Int64("taskId", task.ID).
			Dur("elapsed", time.Since(start)).
			Msg("Task failed")
		_ = s.tasks.MarkFailed(context.Background(), task.ID, err)
		return
	}

	log.Debug().
		Str("kind", task.Kind).
		Int64("taskId", task.ID).
		Dur("elapsed", time.Since(start)).
		Msg("Task completed")
	_ = s.tasks.MarkDone(context.Background(), task.ID)
}
