package plans

import (
	"context"
	"fmt"
	"sync"

	"github.com/abhisek/opoplan/internal/logger"
)

// Runner executes generation tasks.
type Runner interface {
	Generate(ctx context.Context, planID string) error
	Fail(ctx context.Context, planID string, cause error) error
}

// PendingLister finds plans whose generation never finished.
type PendingLister interface {
	Pending(ctx context.Context) ([]string, error)
}

// DefaultQueueSize bounds the number of plans waiting for a worker.
const DefaultQueueSize = 256

// Worker runs generation tasks on a fixed pool of goroutines. At most one
// task per plan is queued or running at any time.
type Worker struct {
	runner  Runner
	pending PendingLister
	log     *logger.Logger
	size    int
	jobs    chan string

	mu      sync.Mutex
	queued  map[string]bool
	running map[string]bool
	again   map[string]bool
}

// NewWorker creates a pool of size goroutines.
func NewWorker(runner Runner, pending PendingLister, size int, log *logger.Logger) *Worker {
	if size < 1 {
		size = 1
	}
	return &Worker{
		runner:  runner,
		pending: pending,
		log:     logger.OrNop(log).With("component", "worker"),
		size:    size,
		jobs:    make(chan string, DefaultQueueSize),
		queued:  make(map[string]bool),
		running: make(map[string]bool),
		again:   make(map[string]bool),
	}
}

// Enqueue schedules generation for a plan. It returns false when a task
// for the plan is already queued, or when the queue is full; a plan whose
// task is running is generated once more after it finishes.
func (w *Worker) Enqueue(planID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queued[planID] {
		if w.running[planID] {
			w.again[planID] = true
		}
		return false
	}
	select {
	case w.jobs <- planID:
		w.queued[planID] = true
		return true
	default:
		// The plan stays queued in the database and is picked up on restart.
		w.log.Warn("generation queue full", "plan_id", planID)
		return false
	}
}

// Run processes tasks until ctx is cancelled. Plans left queued or running
// by a previous process are enqueued first.
func (w *Worker) Run(ctx context.Context) error {
	if w.pending != nil {
		ids, err := w.pending.Pending(ctx)
		if err != nil {
			return fmt.Errorf("recover pending generations: %w", err)
		}
		for _, id := range ids {
			w.Enqueue(id)
		}
		if len(ids) > 0 {
			w.log.Info("recovered pending generations", "count", len(ids))
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-w.jobs:
					w.process(ctx, id)
				}
			}
		}()
	}
	w.log.Info("worker started", "size", w.size)
	wg.Wait()
	w.log.Info("worker stopped")
	return nil
}

func (w *Worker) process(ctx context.Context, planID string) {
	w.mu.Lock()
	w.running[planID] = true
	w.mu.Unlock()
	defer w.done(planID)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("generation panic", "plan_id", planID, "panic", r)
			_ = w.runner.Fail(ctx, planID, fmt.Errorf("generation panicked: %v", r))
		}
	}()
	if err := w.runner.Generate(ctx, planID); err != nil {
		w.log.Warn("generation task ended with error", "plan_id", planID, "error", err)
	}
}

// done releases the plan and requeues it if a new request arrived while it
// was running.
func (w *Worker) done(planID string) {
	w.mu.Lock()
	delete(w.queued, planID)
	delete(w.running, planID)
	rerun := w.again[planID]
	delete(w.again, planID)
	w.mu.Unlock()
	if rerun {
		w.Enqueue(planID)
	}
}
