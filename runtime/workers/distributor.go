package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	relayerr "chat-relay/errors"
	"chat-relay/moderation"
)

// Distributor is the single consumer of the relay queue. Each step takes one
// envelope and writes it to every registered session except the author's.
// A peer whose write fails is dropped on the spot and the fan-out carries on;
// one slow or dead reader never blocks the rest.
type Distributor struct {
	registry  contract.IRegistry
	queue     contract.IQueue[domain.Envelope]
	events    contract.IQueue[event.DomainEvent]
	moderator *moderation.Moderator // non-nil enables the censor stage
	log       *slog.Logger
}

var _ contract.Task = (*Distributor)(nil)

func NewDistributor(
	registry contract.IRegistry,
	queue contract.IQueue[domain.Envelope],
	events contract.IQueue[event.DomainEvent],
	moderator *moderation.Moderator,
	log *slog.Logger,
) *Distributor {
	return &Distributor{
		registry:  registry,
		queue:     queue,
		events:    events,
		moderator: moderator,
		log:       log,
	}
}

func (d *Distributor) Init(ctx context.Context) error {
	d.log.Info("Distributor ready", "sessions", d.registry.Len())
	return nil
}

func (d *Distributor) Step(ctx context.Context) error {
	entry, err := d.queue.Take(ctx)
	if err != nil {
		return relayerr.ErrStopTask
	}

	msg := entry.Msg
	if d.moderator != nil {
		sanitized, foundWords := d.moderator.Censor(msg.Body)
		if len(foundWords) > 0 {
			info := whatlanggo.Detect(msg.Body)
			d.log.Info("Censored message",
				"sender", msg.Sender,
				"words", len(foundWords),
				"lang", info.Lang.Iso6391())
			msg.Body = sanitized
		}
	}

	delivered := 0
	for _, id := range d.registry.SnapshotIDs() {
		if id == entry.Author {
			continue
		}
		peer, ok := d.registry.Get(id)
		if !ok {
			continue // gone since the snapshot
		}
		if err := peer.Send(msg); err != nil {
			d.log.Warn("Write failed, dropping peer", "id", id.String(), "error", err)
			_ = peer.Close()
			d.registry.Remove(id, peer)
			d.events.Put(event.PeerDropped{
				Peer:   id,
				Author: entry.Author,
				Reason: err.Error(),
				At:     time.Now().UTC(),
			})
			continue
		}
		delivered++
	}

	d.events.Put(event.MessageRelayed{
		Author:     entry.Author,
		Sender:     msg.Sender,
		Recipients: delivered,
		At:         time.Now().UTC(),
	})
	d.log.Debug("Message fanned out", "sender", msg.Sender, "recipients", delivered)
	return nil
}

func (d *Distributor) Stop() error {
	return nil
}
