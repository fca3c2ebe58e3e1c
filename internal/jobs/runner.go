// Package jobs provides a serialized background runner for store and
// network operations.
//
// Store calls block, sometimes for the full duration of a network
// timeout. A presentation layer must never issue them from its
// input-handling thread; it submits them here and receives the result
// over a channel. A single worker goroutine executes jobs in
// submission order, which also keeps local-store writes single-writer.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("job runner closed")

type job struct {
	name   string
	fn     func(ctx context.Context) error
	result chan error
}

// Runner executes submitted jobs one at a time on a background
// goroutine.
type Runner struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	logger *log.Logger
}

// NewRunner creates and starts a runner. queueSize bounds the number
// of pending jobs; submissions beyond it block. If logger is nil, a
// default logger writing to stderr is used.
func NewRunner(queueSize int, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stderr, "[jobs] ", log.LstdFlags)
	}
	r := &Runner{
		jobs:   make(chan job, queueSize),
		logger: logger,
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Submit enqueues fn and returns a channel that delivers its result.
// The channel receives exactly one value.
func (r *Runner) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)

	// The enqueue happens under the mutex so Close can never close the
	// channel between the closed check and the send. The worker keeps
	// draining until Close, so the send cannot block indefinitely.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		result <- fmt.Errorf("%s: %w", name, ErrClosed)
		return result
	}
	r.jobs <- job{name: name, fn: wrapCtx(ctx, fn), result: result}
	return result
}

// Do submits fn and blocks until it completes.
func (r *Runner) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return <-r.Submit(ctx, name, fn)
}

// Close stops accepting jobs, drains the pending queue, and waits for
// the worker to exit. Jobs already queued still run to completion so a
// record is never abandoned mid insert-and-mark sequence.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) loop() {
	defer r.wg.Done()

	for j := range r.jobs {
		err := j.fn(context.Background())
		if err != nil {
			r.logger.Printf("job %s failed: %v", j.name, err)
		}
		j.result <- err
	}
}

// wrapCtx binds the submitter's context to the job so cancellation
// before execution is observed.
func wrapCtx(ctx context.Context, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	}
}
