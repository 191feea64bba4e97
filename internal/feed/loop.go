package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrLoopStopped is returned when work is submitted to a stopped loop.
var ErrLoopStopped = errors.New("feed loop stopped")

// Loop owns an Engine and runs every mutation on one goroutine. Network work
// happens elsewhere; results are handed back through Do or Call.
type Loop struct {
	engine     *Engine
	ops        chan func(*Engine)
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	startOnce  sync.Once
	sweepEvery time.Duration
	log        *slog.Logger
}

// NewLoop wraps engine. sweepEvery <= 0 disables the periodic sweep.
func NewLoop(engine *Engine, sweepEvery time.Duration, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		engine:     engine,
		ops:        make(chan func(*Engine), 64),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		sweepEvery: sweepEvery,
		log:        log,
	}
}

// Start runs the loop until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Stop ends the loop and waits for the current operation to finish.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.done
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	var tick <-chan time.Time
	if l.sweepEvery > 0 {
		ticker := time.NewTicker(l.sweepEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case op := <-l.ops:
			op(l.engine)
		case <-tick:
			l.engine.Sweep()
		}
	}
}

// Do queues fn without waiting for it. It returns false if the loop stopped.
func (l *Loop) Do(fn func(*Engine)) bool {
	select {
	case l.ops <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func(*Engine)) error {
	finished := make(chan struct{})
	op := func(e *Engine) {
		defer close(finished)
		fn(e)
	}
	select {
	case l.ops <- op:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// The op may have run before the loop exited.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
