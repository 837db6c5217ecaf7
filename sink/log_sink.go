package sink

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/domain/event"
)

// LogSink mirrors the event stream into the operational log. Useful on its
// own when the audit trail is disabled.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (l LogSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.SessionOpened:
		l.log.Debug("Session opened", "id", evt.ID.String(), "remote", evt.Remote)
	case event.SessionClosed:
		l.log.Debug("Session closed", "id", evt.ID.String(), "reason", evt.Reason)
	case event.MessageRelayed:
		l.log.Debug("Message relayed", "sender", evt.Sender, "recipients", evt.Recipients)
	case event.PeerDropped:
		l.log.Warn("Peer dropped", "id", evt.Peer.String(), "reason", evt.Reason)
	default:
		l.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
	}
	return nil
}
