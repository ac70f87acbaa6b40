package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned when a task is posted to a stopped loop.
var ErrLoopStopped = errors.New("ui loop stopped")

// UILoop is the single-threaded UI context. Tasks run one at a time on one
// goroutine in the order they were posted; every cell mutation happens here.
type UILoop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewUILoop starts the loop goroutine.
func NewUILoop() *UILoop {
	l := &UILoop{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues task without waiting. It never blocks, so background
// workers and UI tasks alike may post. It reports false once stopped.
func (l *UILoop) Post(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs task on the loop and waits for it to finish. It must not be
// called from a task running on the loop.
func (l *UILoop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Stop ends the loop after the task currently running. Queued tasks are dropped.
func (l *UILoop) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})
	<-l.stopped
}

func (l *UILoop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			task := l.next()
			if task == nil {
				break
			}
			l.runTask(task)
		}
	}
}

func (l *UILoop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.closed {
		return nil
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task
}

func (l *UILoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ui loop: task panicked", "panic", r)
		}
	}()
	task()
}
