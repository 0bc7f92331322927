package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncBufferSize   = 1024
	defaultAsyncFlushTimeout = 5 * time.Second
)

// AsyncOptions configures the async log pipeline.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
}

type asyncRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// asyncQueue is shared by every handler derived from one AsyncHandler so
// a single goroutine drains records in order.
type asyncQueue struct {
	ch           chan asyncRecord
	flushTimeout time.Duration
	closed       atomic.Bool
	done         chan struct{}
	closeOnce    sync.Once
}

func newAsyncQueue(opts AsyncOptions) *asyncQueue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultAsyncBufferSize
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultAsyncFlushTimeout
	}
	q := &asyncQueue{
		ch:           make(chan asyncRecord, opts.BufferSize),
		flushTimeout: opts.FlushTimeout,
		done:         make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *asyncQueue) drain() {
	defer close(q.done)
	for rec := range q.ch {
		// Remote sink errors are not actionable from inside the logger.
		_ = rec.handler.Handle(rec.ctx, rec.record)
	}
}

func (q *asyncQueue) push(rec asyncRecord) {
	if q.closed.Load() {
		return
	}
	select {
	case q.ch <- rec:
	default: // buffer full
	}
}

func (q *asyncQueue) close(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	q.closeOnce.Do(func() { close(q.ch) })
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler wraps a slog.Handler and dispatches records from a background
// goroutine, so remote shipping never blocks request paths. Records are
// dropped when the buffer is full.
type AsyncHandler struct {
	queue   *asyncQueue
	handler slog.Handler
}

// NewAsyncHandler creates a new async handler with its own queue.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{queue: newAsyncQueue(opts), handler: handler}
}

// Enabled reports whether the underlying handler is enabled for the given level.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle enqueues the record for async processing.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.handler.Enabled(ctx, r.Level) {
		return nil
	}
	h.queue.push(asyncRecord{ctx: ctx, record: r.Clone(), handler: h.handler})
	return nil
}

// WithAttrs returns a new async handler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new async handler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes pending records, bounded by ctx or the flush timeout.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.queue == nil {
		return nil
	}
	return h.queue.close(ctx)
}
