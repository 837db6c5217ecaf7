package client

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/wire"
)

// quitCommand ends the console session.
const quitCommand = "/quit"

// Sender reads console lines and ships them to the relay. The loop ends on
// /quit or end of input, never on a dead link: a lost connection is reported
// and the line dropped, then reading continues.
type Sender struct {
	conn   *Conn
	name   string
	in     io.Reader
	render Renderer
	log    *slog.Logger
}

var _ contract.Worker = (*Sender)(nil)

func NewSender(conn *Conn, name string, in io.Reader, render Renderer, log *slog.Logger) *Sender {
	return &Sender{conn: conn, name: name, in: in, render: render, log: log}
}

func (s *Sender) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	enc := wire.NewEncoder(s.conn)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if line == quitCommand {
			s.log.Debug("Quit requested")
			return nil
		}

		// Stamped right before it goes out, even when the link is gone,
		// so the local echo and the relayed copy carry the same moment.
		msg := domain.NewMessage(s.name, line).WithSent(time.Now().UTC())
		if !s.conn.Alive() {
			s.render.Notice("lost connection to server, message dropped")
			continue
		}
		if err := enc.Encode(msg); err != nil {
			s.conn.MarkLost()
			s.log.Warn("Write failed", "error", err)
			s.render.Notice("lost connection to server, message dropped")
			continue
		}
		s.render.Message(msg)
	}
	return scanner.Err()
}
