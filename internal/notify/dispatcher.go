package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alfredai/landing-leads/pkg/logging"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
	ErrQueueFull = errors.New("notify: dispatcher queue full")
	// ErrDispatcherStopped is returned by Enqueue after Stop.
	ErrDispatcherStopped = errors.New("notify: dispatcher stopped")
)

// Task is a unit of background work, typically one email.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskError reports a failed task.
type TaskError struct {
	Task string
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

func (e TaskError) Unwrap() error { return e.Err }

// DispatcherConfig sizes the dispatcher.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	TaskTimeout time.Duration
}

// Dispatcher runs tasks on a fixed worker pool fed by a buffered channel.
// Tasks are not persisted; anything still queued when the process dies is lost.
type Dispatcher struct {
	tasks   chan Task
	errs    chan TaskError
	workers int
	timeout time.Duration
	logger  *logging.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, logger *logging.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		tasks:   make(chan Task, cfg.QueueSize),
		errs:    make(chan TaskError, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.TaskTimeout,
		logger:  logger,
	}
}

// Start launches the workers. Tasks keep running after ctx is cancelled so
// queued mail is still delivered during shutdown; use Stop to drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	base := context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(base)
	}
}

// Enqueue adds a task without blocking.
func (d *Dispatcher) Enqueue(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Errors streams task failures. The channel is closed once Stop has drained
// the queue.
func (d *Dispatcher) Errors() <-chan TaskError {
	return d.errs
}

// Stop refuses new tasks and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.tasks)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(d.errs)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: dispatcher stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for task := range d.tasks {
		d.run(ctx, task)
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.report(TaskError{Task: task.Name, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := task.Run(ctx); err != nil {
		d.report(TaskError{Task: task.Name, Err: err})
	}
}

func (d *Dispatcher) report(te TaskError) {
	select {
	case d.errs <- te:
	default:
		d.logger.Error("dispatcher error channel full, dropping", "task", te.Task, "error", te.Err)
	}
}
