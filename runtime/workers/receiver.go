package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	relayerr "chat-relay/errors"
	"chat-relay/wire"
)

// Receiver drains one session's inbound stream, one message per step. A
// message that fails to decode is discarded and the stream carries on; an
// I/O failure ends the loop and tears the session down. Teardown closes the
// socket and deregisters exactly once, whoever triggers it first.
type Receiver struct {
	session  *Session
	registry contract.IRegistry
	queue    contract.IQueue[domain.Envelope]
	events   contract.IQueue[event.DomainEvent]
	log      *slog.Logger

	dec       *wire.Decoder
	stopWatch func() bool
	reason    string
}

var _ contract.Task = (*Receiver)(nil)

func NewReceiver(
	session *Session,
	registry contract.IRegistry,
	queue contract.IQueue[domain.Envelope],
	events contract.IQueue[event.DomainEvent],
	log *slog.Logger,
) *Receiver {
	return &Receiver{
		session:  session,
		registry: registry,
		queue:    queue,
		events:   events,
		log:      log,
	}
}

func (r *Receiver) Init(ctx context.Context) error {
	if _, ok := r.registry.Get(r.session.ID); !ok {
		return fmt.Errorf("session %s is not registered", r.session.ID)
	}
	r.dec = wire.NewDecoder(r.session.Conn())
	r.reason = "connection closed"
	// Decode blocks without watching ctx; closing the socket unblocks it.
	r.stopWatch = context.AfterFunc(ctx, func() {
		_ = r.session.Close()
	})
	return nil
}

func (r *Receiver) Step(ctx context.Context) error {
	msg, err := r.dec.Decode()
	switch {
	case err == nil:
		r.queue.Put(domain.Envelope{Author: r.session.ID, Msg: msg})
		r.log.Debug("Message queued", "id", r.session.ID.String(), "sender", msg.Sender)
		return nil
	case errors.Is(err, relayerr.ErrDecode):
		// One undecodable message never costs the connection.
		r.log.Warn("Discarding undecodable message", "id", r.session.ID.String(), "error", err)
		return nil
	case errors.Is(err, io.EOF):
		r.log.Info("Peer left", "id", r.session.ID.String())
		r.reason = "peer left"
		return relayerr.ErrStopTask
	default:
		if ctx.Err() != nil {
			r.reason = "shutdown"
		} else {
			r.log.Warn("Connection failed", "id", r.session.ID.String(), "error", err)
			r.reason = "connection failure"
		}
		return relayerr.ErrStopTask
	}
}

func (r *Receiver) Stop() error {
	if r.stopWatch != nil {
		r.stopWatch()
	}
	err := r.session.Close()
	if r.registry.Remove(r.session.ID, r.session) {
		r.events.Put(event.SessionClosed{ID: r.session.ID, Reason: r.reason, At: time.Now().UTC()})
		r.log.Info("Session closed", "id", r.session.ID.String(), "reason", r.reason)
	}
	return err
}
