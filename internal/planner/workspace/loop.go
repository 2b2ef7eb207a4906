package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	apperrors "landscape-planner/internal/common/errors"
)

// ============================================================
// Loop
// ============================================================

// ErrStopped is returned for work submitted to a stopped loop.
var ErrStopped = apperrors.New(apperrors.ErrCodeInternal, "workspace loop stopped")

// Loop runs submitted functions one at a time on a single goroutine. All
// scene, plot and surface state of a workspace is touched only from here.
type Loop struct {
	tasks   chan func()
	quit    chan struct{}
	done    chan struct{}
	mu      sync.RWMutex
	stopped bool
	logger  *log.Logger
}

func NewLoop(buffer int, logger *log.Logger) *Loop {
	return &Loop{
		tasks:  make(chan func(), buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start() *Loop {
	go l.Run()
	return l
}

// Run executes tasks until Stop is called, then runs whatever was accepted
// before the stop.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.quit:
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		default:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn without waiting. It reports false once the loop is stopped.
// A task accepted by Post always runs, even if Stop follows.
func (l *Loop) Post(fn func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Do runs fn on the loop and waits for its result. A panic in fn is
// returned as an internal error.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	posted := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- apperrors.New(apperrors.ErrCodeInternal, "%v", fmt.Sprint(r))
			}
		}()
		result <- fn()
	})
	if !posted {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop rejects new tasks, runs the queued ones and waits for the loop to
// exit. It is safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.quit)
	}
	l.mu.Unlock()
	<-l.done
}
