package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"portrait/pkg/requestcontext"
)

// StorePublisher writes events to a Store, synchronously by default or
// through a buffered channel when async mode is enabled. Async mode trades
// delivery certainty for not blocking registry operations on slow sinks;
// events are dropped (and counted in logs) when the buffer is full.
type StorePublisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

// Option configures a StorePublisher.
type Option func(*StorePublisher)

// WithAsyncBuffer enables asynchronous emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *StorePublisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *StorePublisher) {
		p.logger = logger
	}
}

// NewStorePublisher builds a publisher over the given store.
func NewStorePublisher(store Store, opts ...Option) *StorePublisher {
	p := &StorePublisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps and delivers one event. The event ID, timestamp, request ID,
// and client platform are filled here so call sites stay terse.
func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Client == "" {
		event.Client = requestcontext.ClientPlatform(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("event buffer full, dropping event",
			"type", string(event.Type),
			"event_id", event.ID.String(),
		)
		return nil
	}
}

// Close drains the async buffer. Safe to call multiple times.
func (p *StorePublisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *StorePublisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to append event",
				"type", string(event.Type),
				"event_id", event.ID.String(),
				"error", err,
			)
		}
		cancel()
	}
}
