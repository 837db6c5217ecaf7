package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"chat-relay/cipherio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	relayerr "chat-relay/errors"
	"chat-relay/primes"
	"chat-relay/wire"
)

// handshakeTimeout bounds how long a fresh connection may sit silent before
// the acceptor gives up on its identity token.
const handshakeTimeout = 10 * time.Second

// Acceptor owns the listening socket. Each accepted connection must present
// its identity token before anything else happens; a short or absent token
// abandons the connection without registration. Successful handshakes are
// registered and handed to a dedicated Receiver.
type Acceptor struct {
	addr     string
	registry contract.IRegistry
	queue    contract.IQueue[domain.Envelope]
	events   contract.IQueue[event.DomainEvent]
	sup      contract.ISupervisor
	cache    *primes.Cache // non-nil enables the stream cipher
	log      *slog.Logger

	listener  net.Listener
	stopWatch func() bool
}

var _ contract.Task = (*Acceptor)(nil)

func NewAcceptor(
	addr string,
	registry contract.IRegistry,
	queue contract.IQueue[domain.Envelope],
	events contract.IQueue[event.DomainEvent],
	sup contract.ISupervisor,
	cache *primes.Cache,
	log *slog.Logger,
) *Acceptor {
	return &Acceptor{
		addr:     addr,
		registry: registry,
		queue:    queue,
		events:   events,
		sup:      sup,
		cache:    cache,
		log:      log,
	}
}

// Listen binds the listening socket. Called during startup preparation so a
// bind failure aborts the process instead of a supervised goroutine.
func (a *Acceptor) Listen() error {
	l, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", a.addr, err)
	}
	a.listener = l
	a.log.Info("Relay listening", "addr", l.Addr().String())
	return nil
}

// Addr exposes the bound address, useful when listening on port 0.
func (a *Acceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

func (a *Acceptor) Init(ctx context.Context) error {
	if a.listener == nil {
		if err := a.Listen(); err != nil {
			return err
		}
	}
	// Accept blocks without watching ctx; closing the listener unblocks it.
	a.stopWatch = context.AfterFunc(ctx, func() {
		_ = a.listener.Close()
	})
	return nil
}

func (a *Acceptor) Step(ctx context.Context) error {
	conn, err := a.listener.Accept()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
			return relayerr.ErrStopTask
		}
		a.log.Warn("Accept failed", "error", err)
		return nil
	}
	a.greet(ctx, conn)
	return nil
}

// greet performs the fixed-size handshake, registers the session and spawns
// its receiver. Runs inline: the next accept waits until this peer has
// identified itself or timed out.
func (a *Acceptor) greet(ctx context.Context, raw net.Conn) {
	conn := raw
	if a.cache != nil {
		conn = cipherio.WrapConn(raw, a.cache)
	}

	_ = raw.SetReadDeadline(time.Now().Add(handshakeTimeout))
	token, err := wire.ReadToken(conn)
	if err != nil {
		a.log.Warn("Dropping connection before registration",
			"remote", raw.RemoteAddr().String(), "error", err)
		_ = raw.Close()
		return
	}
	_ = raw.SetReadDeadline(time.Time{})

	id := domain.DeriveClientID(token)
	session := NewSession(id, conn)

	if prev := a.registry.Put(id, session); prev != nil {
		// Newest connection wins. Closing the displaced socket unblocks its
		// receiver, whose conditional removal leaves the new entry alone.
		a.log.Info("Identifier reconnected, closing prior connection", "id", id.String())
		_ = prev.Close()
		a.events.Put(event.SessionClosed{ID: id, Reason: "displaced by reconnect", At: time.Now().UTC()})
	}

	a.events.Put(event.SessionOpened{ID: id, Remote: session.Remote(), At: time.Now().UTC()})
	a.log.Info("Connection set", "id", id.String(), "remote", session.Remote())

	a.sup.Start(ctx, NewLoop(NewReceiver(session, a.registry, a.queue, a.events, a.log), a.log))
}

func (a *Acceptor) Stop() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.listener == nil {
		return nil
	}
	if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
