package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

var (
	ErrNoHandler      = errors.New("loop: handler is required")
	ErrAlreadyStarted = errors.New("loop: start called multiple times")
	ErrNotStarted     = errors.New("loop: not started")
	ErrStopped        = errors.New("loop: stopped")
)

// Handler processes requests submitted to the loop.
type Handler[T any] interface {
	Handle(ctx context.Context, req T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, req T) error

func (f HandlerFunc[T]) Handle(ctx context.Context, req T) error { return f(ctx, req) }

// Config controls the behaviour of the single thread loop.
type Config[T any] struct {
	Handler   Handler[T]
	QueueSize int
	Logger    *slog.Logger
}

// Loop delivers incoming requests to the provided handler on a single goroutine.
// The handler owns its state exclusively and needs no locking.
type Loop[T any] struct {
	handler Handler[T]
	queue   chan T
	logger  *slog.Logger

	started atomic.Bool
	stopped atomic.Bool

	done chan struct{}
}

// New creates a Loop with the supplied configuration.
func New[T any](cfg Config[T]) (*Loop[T], error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop[T]{
		handler: cfg.Handler,
		queue:   make(chan T, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the single-thread loop. It must be called once.
func (l *Loop[T]) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go l.run(ctx)
	return nil
}

func (l *Loop[T]) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.logger.DebugContext(ctx, "loop: context cancelled, shutting down", "err", ctx.Err())
			return
		case req, ok := <-l.queue:
			if !ok {
				l.logger.DebugContext(ctx, "loop: queue closed, exiting")
				return
			}
			if err := l.handler.Handle(ctx, req); err != nil {
				l.logger.WarnContext(ctx, "loop: handler error", "err", err)
			}
		}
	}
}

// Submit enqueues a request to be processed by the loop.
func (l *Loop[T]) Submit(ctx context.Context, req T) error {
	if !l.started.Load() {
		return ErrNotStarted
	}
	if l.stopped.Load() {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	case l.queue <- req:
		return nil
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop[T]) Done() <-chan struct{} { return l.done }

// Stop drains the loop and waits for graceful completion.
func (l *Loop[T]) Stop(ctx context.Context) error {
	if !l.stopped.CompareAndSwap(false, true) {
		return ErrStopped
	}
	close(l.queue)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainTimeout closes the queue and waits for completion with the given timeout.
func (l *Loop[T]) DrainTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Stop(ctx)
}
