// Package worker drains the postgres event outbox into Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"portrait/internal/events"
)

// Outbox is the undispatched-event source (the postgres store).
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]events.Event, error)
	MarkDispatched(ctx context.Context, eventIDs []string) error
}

// Worker polls the outbox and publishes pending events in order. A failed
// publish leaves the event undispatched for the next tick; duplicates on the
// topic are possible and consumers must dedupe on event ID.
type Worker struct {
	outbox    Outbox
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// New builds an outbox worker.
func New(outbox Outbox, publisher events.Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: 256,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	pending, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	dispatched := make([]string, 0, len(pending))
	for _, event := range pending {
		if err := w.publisher.Emit(ctx, event); err != nil {
			// Keep ordering: stop at the first failure and retry from it
			// next tick.
			w.logger.Warn("event publish failed, will retry",
				"event_id", event.ID.String(),
				"error", err,
			)
			break
		}
		dispatched = append(dispatched, event.ID.String())
	}
	return w.outbox.MarkDispatched(ctx, dispatched)
}
