package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task struct {
	ID      string
	Kind    string
	Payload interface{}
}

// Handler executes a task. A returned error triggers a retry with backoff.
type Handler func(context.Context, Task) error

// Options tunes the worker pool.
type Options struct {
	Workers    int
	BufferSize int
	MaxRetries int
	BaseDelay  time.Duration
}

// Dispatcher runs tasks on a goroutine pool with in-worker retries. Tasks
// live in memory only; delivery is at-least-once while the process runs and
// nothing survives a restart.
type Dispatcher struct {
	name    string
	handler Handler
	opts    Options
	logger  *zap.Logger

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher around the handler.
func NewDispatcher(name string, handler Handler, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = opts.Workers * 8
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		name:    name,
		handler: handler,
		opts:    opts,
		logger:  logger,
		tasks:   make(chan Task, opts.BufferSize),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.started = true
	d.logger.Info("dispatcher started", zap.String("dispatcher", d.name), zap.Int("workers", d.opts.Workers))
}

// Stop cancels the pool and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped", zap.String("dispatcher", d.name))
}

// Submit queues a task. It fails when the dispatcher is not running or the
// buffer is full; alerts must not block their caller on a slow sink.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.Lock()
	started := d.started
	ctx := d.ctx
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("dispatcher %s not started", d.name)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatcher %s stopped: %w", d.name, ctx.Err())
	case d.tasks <- task:
		return nil
	default:
		return fmt.Errorf("dispatcher %s buffer full, dropping task %s", d.name, task.ID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case task := <-d.tasks:
			d.execute(task)
		}
	}
}

// execute retries the task in the same worker with doubling delays, so a
// failing sink slows one worker down instead of flooding the buffer with
// requeued tasks.
func (d *Dispatcher) execute(task Task) {
	delay := d.opts.BaseDelay
	for attempt := 0; ; attempt++ {
		err := d.handler(d.ctx, task)
		if err == nil {
			return
		}
		if attempt >= d.opts.MaxRetries {
			d.logger.Error("task exceeded retries",
				zap.String("dispatcher", d.name),
				zap.String("task_id", task.ID),
				zap.String("kind", task.Kind),
				zap.Error(err))
			return
		}
		d.logger.Warn("task failed, retrying",
			zap.String("dispatcher", d.name),
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
	}
}
