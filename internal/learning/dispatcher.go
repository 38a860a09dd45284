package learning

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
)

// Task is a unit of background work. Its context carries the dispatcher's
// per-task timeout, not the deadline of the request that queued it.
type Task func(ctx context.Context)

type job struct {
	name string
	run  Task
}

// Dispatcher runs tasks on a fixed pool of workers behind a bounded queue.
// Submit never blocks; when the queue is full the task is dropped.
type Dispatcher struct {
	queue   chan job
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		queue:   make(chan job, queueSize),
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit queues a task and reports whether it was accepted.
func (d *Dispatcher) Submit(name string, task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.drop(name, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- job{name: name, run: task}:
		return true
	default:
		d.drop(name, "queue full")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed.Swap(true) {
		d.mu.Unlock()
		return
	}
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background task panicked", "task", j.name, "panic", r)
		}
	}()

	start := time.Now()
	j.run(ctx)
	if ctx.Err() == context.DeadlineExceeded {
		d.logger.Warn("background task timed out", "task", j.name, "timeout", d.timeout)
		return
	}
	d.logger.Debug("background task done", "task", j.name, "duration_ms", time.Since(start).Milliseconds())
}

func (d *Dispatcher) drop(name, reason string) {
	d.metrics.LearningDropped()
	d.logger.Warn("background task dropped", "task", name, "reason", reason)
}
