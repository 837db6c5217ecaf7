package client

import (
	"context"
	"errors"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	relayerr "chat-relay/errors"
	"chat-relay/wire"
)

// Receiver decodes relayed messages and renders them. An undecodable body is
// logged and rendered as the zero message; losing the connection finishes
// the run.
type Receiver struct {
	conn   *Conn
	render Renderer
	log    *slog.Logger
}

var _ contract.Worker = (*Receiver)(nil)

func NewReceiver(conn *Conn, render Renderer, log *slog.Logger) *Receiver {
	return &Receiver{conn: conn, render: render, log: log}
}

func (r *Receiver) Run(ctx context.Context) error {
	dec := wire.NewDecoder(r.conn)
	for {
		msg, err := dec.Decode()
		switch {
		case err == nil:
			r.render.Message(msg)
		case errors.Is(err, relayerr.ErrDecode):
			r.log.Warn("Discarding undecodable message", "error", err)
			r.render.Message(domain.Message{})
		default:
			r.conn.MarkLost()
			if ctx.Err() == nil {
				r.render.Notice("lost connection to server")
			}
			return nil
		}
	}
}
