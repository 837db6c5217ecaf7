package workers

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/cipherio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	relayerr "chat-relay/errors"
	"chat-relay/logs"
	"chat-relay/mocks"
	"chat-relay/primes"
	"chat-relay/wire"
)

type acceptorDeps struct {
	ctrl     *gomock.Controller
	registry *mocks.MockIRegistry
	queue    *mocks.MockIQueue[domain.Envelope]
	events   *mocks.MockIQueue[event.DomainEvent]
	sup      *mocks.MockISupervisor
}

func newAcceptorForTest(t *testing.T, cache *primes.Cache) (*Acceptor, acceptorDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := acceptorDeps{
		ctrl:     ctrl,
		registry: mocks.NewMockIRegistry(ctrl),
		queue:    mocks.NewMockIQueue[domain.Envelope](ctrl),
		events:   mocks.NewMockIQueue[event.DomainEvent](ctrl),
		sup:      mocks.NewMockISupervisor(ctrl),
	}
	a := NewAcceptor("127.0.0.1:0", deps.registry, deps.queue, deps.events,
		deps.sup, cache, logs.GetLoggerFromString("error"))
	return a, deps
}

func TestAcceptor_RegistersIdentifiedConnection(t *testing.T) {
	req := require.New(t)
	a, deps := newAcceptorForTest(t, nil)
	req.NoError(a.Init(context.Background()))
	defer func() { _ = a.Stop() }()

	token := domain.NewToken()
	wantID := domain.DeriveClientID([]byte(token))

	registered := make(chan contract.Peer, 1)
	deps.registry.EXPECT().Put(wantID, gomock.Any()).
		DoAndReturn(func(_ domain.ClientID, p contract.Peer) contract.Peer {
			registered <- p
			return nil
		})
	deps.events.EXPECT().Put(gomock.Any()).Do(func(e event.DomainEvent) {
		opened, ok := e.(event.SessionOpened)
		req.True(ok)
		req.Equal(wantID, opened.ID)
	})
	deps.sup.EXPECT().Start(gomock.Any(), gomock.Any())

	// Given a client that identifies itself
	go func() {
		conn, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			return
		}
		_ = wire.WriteToken(conn, token)
	}()

	// When one accept round runs
	req.NoError(a.Step(context.Background()))

	// Then the session is registered under the derived identifier
	peer := <-registered
	req.NotNil(peer)
	req.NotEmpty(peer.Remote())
}

func TestAcceptor_AbandonsShortHandshake(t *testing.T) {
	req := require.New(t)
	a, _ := newAcceptorForTest(t, nil)
	req.NoError(a.Init(context.Background()))
	defer func() { _ = a.Stop() }()

	// Given a client that hangs up before completing its token; no
	// expectation is set, so any registry or supervisor call fails the test
	go func() {
		conn, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("too short"))
		_ = conn.Close()
	}()

	// When the accept round runs, the connection is dropped quietly
	req.NoError(a.Step(context.Background()))
}

func TestAcceptor_DuplicateIdentifierClosesPriorConnection(t *testing.T) {
	req := require.New(t)
	a, deps := newAcceptorForTest(t, nil)
	req.NoError(a.Init(context.Background()))
	defer func() { _ = a.Stop() }()

	prior := mocks.NewMockPeer(deps.ctrl)
	prior.EXPECT().Close().Return(nil)

	token := domain.NewToken()
	id := domain.DeriveClientID([]byte(token))

	deps.registry.EXPECT().Put(id, gomock.Any()).Return(prior)
	deps.events.EXPECT().Put(gomock.Any()).Times(2) // closed for the displaced, opened for the new
	deps.sup.EXPECT().Start(gomock.Any(), gomock.Any())

	go func() {
		conn, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			return
		}
		_ = wire.WriteToken(conn, token)
	}()

	req.NoError(a.Step(context.Background()))
}

func TestAcceptor_EncryptedHandshake(t *testing.T) {
	req := require.New(t)
	cache := primes.Generate(1 << 17)
	a, deps := newAcceptorForTest(t, cache)
	req.NoError(a.Init(context.Background()))
	defer func() { _ = a.Stop() }()

	token := domain.NewToken()
	id := domain.DeriveClientID([]byte(token))

	deps.registry.EXPECT().Put(id, gomock.Any()).Return(nil)
	deps.events.EXPECT().Put(gomock.Any())
	deps.sup.EXPECT().Start(gomock.Any(), gomock.Any())

	// Given a client speaking the same stream cipher
	go func() {
		conn, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			return
		}
		_ = wire.WriteToken(cipherio.WrapConn(conn, cache), token)
	}()

	// When the accept round runs, the token decrypts to the same identifier
	req.NoError(a.Step(context.Background()))
}

func TestAcceptor_CancellationUnblocksAccept(t *testing.T) {
	req := require.New(t)
	a, _ := newAcceptorForTest(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(a.Init(ctx))
	defer func() { _ = a.Stop() }()

	cancel()

	req.ErrorIs(a.Step(ctx), relayerr.ErrStopTask)
}
