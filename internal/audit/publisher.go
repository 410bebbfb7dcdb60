package audit

import (
	"context"
	"sync"
	"time"
)

// Publisher captures structured audit events. In sync mode every Emit writes
// through to the sink; with an async buffer, events are handed to a worker
// goroutine and Close drains whatever is still queued.
type Publisher struct {
	sink Sink

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer moves sink writes off the caller's path. When the buffer is
// full events are dropped rather than blocking domain logic.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		// Audit must not stall writes; a full buffer sheds load.
	}
	return nil
}

// Close stops the async worker after flushing queued events. Safe to call in
// sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// The emitter's request context is long gone by the time the worker
		// runs; persistence gets its own.
		_ = p.sink.Append(context.Background(), event)
	}
}
