// Package loop は状態を1つのゴルーチンだけで変更するための実行器です。
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

var (
	ErrNotStarted     = errors.New("loop: not started")
	ErrStopped        = errors.New("loop: stopped")
	ErrAlreadyStarted = errors.New("loop: start called multiple times")
)

// Task はループ上で実行される処理です。
type Task func(ctx context.Context) error

// Config controls the behaviour of the single thread loop.
type Config struct {
	QueueSize int
	Logger    *slog.Logger
}

// Loop delivers submitted tasks to a single goroutine.
type Loop struct {
	queue  chan Task
	logger *slog.Logger

	started atomic.Bool
	stopped atomic.Bool

	quit chan struct{}
	done chan struct{}
}

func New(cfg Config) *Loop {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan Task, queueSize),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the single-thread loop. It must be called once.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "loop: context cancelled, shutting down", "err", ctx.Err())
			return
		case <-l.quit:
			l.drain(ctx)
			return
		case task := <-l.queue:
			l.exec(ctx, task)
		}
	}
}

// drain は停止前に積まれていたタスクを実行します。
func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case task := <-l.queue:
			l.exec(ctx, task)
		default:
			return
		}
	}
}

func (l *Loop) exec(ctx context.Context, task Task) {
	if err := task(ctx); err != nil {
		l.logger.WarnContext(ctx, "loop: task error", "err", err)
	}
}

// Submit enqueues a task to be processed by the loop.
func (l *Loop) Submit(ctx context.Context, task Task) error {
	if !l.started.Load() {
		return ErrNotStarted
	}
	if l.stopped.Load() {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	case l.queue <- task:
		return nil
	}
}

// Stop drains the loop and waits for graceful completion.
func (l *Loop) Stop(ctx context.Context) error {
	if !l.stopped.CompareAndSwap(false, true) {
		return ErrStopped
	}
	close(l.quit)
	if !l.started.Load() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainTimeout stops the loop and waits for completion with the given timeout.
func (l *Loop) DrainTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Stop(ctx)
}
