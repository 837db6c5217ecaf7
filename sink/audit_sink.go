package sink

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/repositories"
)

// Audit record kinds as stored on disk.
const (
	KindSessionOpened  = "session_opened"
	KindSessionClosed  = "session_closed"
	KindMessageRelayed = "message_relayed"
	KindPeerDropped    = "peer_dropped"
)

// AuditSink writes every domain event to the persistent audit trail.
type AuditSink struct {
	repository repositories.ISessionRepository
	log        *slog.Logger
}

func NewAuditSink(repository repositories.ISessionRepository, log *slog.Logger) AuditSink {
	return AuditSink{repository: repository, log: log}
}

func (a AuditSink) Consume(_ context.Context, e event.DomainEvent) error {
	return a.repository.Record(toRecord(e))
}

func toRecord(e event.DomainEvent) repositories.AuditRecord {
	rec := repositories.AuditRecord{Session: e.Session(), At: e.OccurredAt()}
	switch evt := e.(type) {
	case event.SessionOpened:
		rec.Kind = KindSessionOpened
		rec.Detail = evt.Remote
	case event.SessionClosed:
		rec.Kind = KindSessionClosed
		rec.Detail = evt.Reason
	case event.MessageRelayed:
		rec.Kind = KindMessageRelayed
		rec.Detail = fmt.Sprintf("sender=%s recipients=%d", evt.Sender, evt.Recipients)
	case event.PeerDropped:
		rec.Kind = KindPeerDropped
		rec.Detail = evt.Reason
	default:
		rec.Kind = fmt.Sprintf("%T", e)
	}
	return rec
}
