package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "checkpoint/pkg/domain"
)

// Sink delivers events to an external system (message broker, SIEM).
type Sink interface {
	Deliver(ctx context.Context, event Event) error
	Close()
}

// Publisher appends events to the store and fans them out to the configured
// sinks. With an async buffer, Emit enqueues and a background worker
// delivers; a full buffer drops the event with a log line rather than
// blocking the request path.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer makes Emit asynchronous with the given queue size.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

// WithSink adds an external delivery sink.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) { p.sinks = append(p.sinks, sink) }
}

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event. In async mode the error is always nil; delivery
// problems surface in logs only.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, event dropped",
					"action", event.Action,
					"user_id", event.UserID,
				)
			}
		}
		return nil
	}
	return p.deliver(ctx, event)
}

// List returns the audit trail for a user from the backing store.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close drains the async queue and closes the sinks.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
		for _, sink := range p.sinks {
			sink.Close()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Detached from the request context on purpose; an aborted request
		// still leaves its trail.
		if err := p.deliver(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Warn("audit delivery failed", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) error {
	err := p.store.Append(ctx, event)

	for _, sink := range p.sinks {
		if sinkErr := sink.Deliver(ctx, event); sinkErr != nil && p.logger != nil {
			p.logger.Warn("audit sink delivery failed", "action", event.Action, "error", sinkErr)
		}
	}
	return err
}
