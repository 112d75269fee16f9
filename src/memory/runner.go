package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrRunnerClosed is returned by Go after Close.
var ErrRunnerClosed = errors.New("memory runner closed")

// DefaultTaskTimeout bounds a detached task.
const DefaultTaskTimeout = 2 * time.Minute

// Runner runs detached background tasks. A task never sees the caller's
// context; it gets its own with a timeout, and its error goes to OnError.
type Runner struct {
	timeout time.Duration
	onError func(task string, err error)
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type RunnerOptions struct {
	Timeout time.Duration
	OnError func(task string, err error)
	Logger  *slog.Logger
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTaskTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{timeout: opts.Timeout, onError: opts.OnError, logger: logger.With("component", "memory_runner")}
	if r.onError == nil {
		r.onError = func(task string, err error) {
			r.logger.Warn("background task failed", "task", task, "error", err)
		}
	}
	return r
}

// Go starts fn in the background.
func (r *Runner) Go(task string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				r.onError(task, panicError{value: p})
			}
		}()
		if err := fn(ctx); err != nil {
			r.onError(task, err)
			return
		}
		r.logger.Debug("background task completed", "task", task, "duration", time.Since(start))
	}()
	return nil
}

// Close stops accepting tasks and waits for running ones.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
