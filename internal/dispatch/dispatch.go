// Package dispatch routes processed messages to their handler. Sync handlers
// run on the caller's goroutine in arrival order; async handlers run on a
// bounded pool and hand their result back through an inject callback.
package dispatch

import (
	"context"
	"sync"

	"github.com/blukai/blockparty/internal/debug"
	"github.com/blukai/blockparty/internal/protocol"
	"golang.org/x/sync/semaphore"
)

// SyncFunc handles m on the connection's own loop. C is whatever context the
// handler needs, usually the connection.
type SyncFunc[C any] func(c C, m protocol.Message) error

// AsyncFunc handles m off the connection's loop. It must not touch the
// connection; whatever it returns is injected back and handled there.
type AsyncFunc func(ctx context.Context, m protocol.Message) (protocol.Message, error)

type handler[C any] struct {
	sync  SyncFunc[C]
	async AsyncFunc
}

// Dispatcher is built once at startup and shared by all connections.
type Dispatcher[C any] struct {
	handlers [protocol.KindMax]*handler[C]

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New creates a dispatcher whose async handlers run at most workers at a
// time.
func New[C any](workers int) *Dispatcher[C] {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher[C]{
		sem: semaphore.NewWeighted(int64(workers)),
	}
}

func (d *Dispatcher[C]) set(kind protocol.Kind, h *handler[C]) {
	debug.Assertf(kind < protocol.KindMax, "kind %d out of range", kind)
	debug.Assertf(d.handlers[kind] == nil, "%s already has a handler", kind)
	d.handlers[kind] = h
}

// Sync registers fn for kind. A kind can have one handler only.
func (d *Dispatcher[C]) Sync(kind protocol.Kind, fn SyncFunc[C]) {
	d.set(kind, &handler[C]{sync: fn})
}

// Async registers fn for kind to run on the worker pool.
func (d *Dispatcher[C]) Async(kind protocol.Kind, fn AsyncFunc) {
	d.set(kind, &handler[C]{async: fn})
}

// Dispatch hands m to its handler. handled is false when nothing is
// registered for m's kind.
//
// An async handler gets ctx; once ctx is done its result is discarded
// instead of injected. inject is called from the worker goroutine and must
// forward to the connection's loop.
func (d *Dispatcher[C]) Dispatch(
	ctx context.Context,
	c C,
	m protocol.Message,
	inject func(protocol.Message),
) (handled bool, err error) {
	kind := m.Kind()
	if kind >= protocol.KindMax || d.handlers[kind] == nil {
		return false, nil
	}

	h := d.handlers[kind]
	if h.sync != nil {
		return true, h.sync(c, m)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		out, err := h.async(ctx, m)
		d.sem.Release(1)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			out = &protocol.TaskFailure{Source: kind, Err: err}
		}
		if out != nil {
			inject(out)
		}
	}()
	return true, nil
}

// Wait blocks until every async handler that was started has returned.
func (d *Dispatcher[C]) Wait() {
	d.wg.Wait()
}
