package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

const defaultSinkTimeout = 2 * time.Second

// EventFanout broadcasts domain events to in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. EventFanout is not a message broker; it exists
// for observability and side effects (audit trail, logs), never for relay
// logic. A failing sink is logged and skipped.
type EventFanout struct {
	events      contract.IQueue[event.DomainEvent]
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	log         *slog.Logger
}

var _ contract.Worker = (*EventFanout)(nil)

func NewEventFanout(events contract.IQueue[event.DomainEvent], sinkTimeout time.Duration, log *slog.Logger) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{events: events, sinkTimeout: sinkTimeout, log: log}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	w.log.Info("Event fanout running", "sinks", len(w.sinks))
	for {
		evt, err := w.events.Take(ctx)
		if err != nil {
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
		w.fanout(ctx, evt)
	}
}

// fanout hands one event to every sink in turn.
func (w *EventFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		sctx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sctx, evt); err != nil {
			w.log.Warn("Event sink failed", "session", evt.Session().String(), "error", err)
		}
		cancel()
	}
}
