package test

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"chat-relay/cipherio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/logs"
	"chat-relay/primes"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/wire"
)

type RelaySuite struct {
	suite.Suite
	Config Config
	log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *RelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromString("error")
}

// Section prints a colorized header so scenario steps stand out in logs
func (s *RelaySuite) Section(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

type relayOptions struct {
	censorFile string
	cache      *primes.Cache
	sinks      []contract.EventSink
}

// startRelay boots an in-process relay on a loopback port and returns its
// address. Everything is torn down when the test finishes.
func (s *RelaySuite) startRelay(t *testing.T, opts relayOptions) string {
	t.Helper()

	sup := workers.NewSupervisor(s.log, workers.DefaultRestartInterval)
	orchestrator := runtime.NewOrchestrator(
		s.log, sup, runtime.NewRegistry(), opts.cache,
		"127.0.0.1:0", opts.censorFile, '*',
		time.Second, time.Hour,
	)
	orchestrator.Add(opts.sinks...)

	ctx, cancel := context.WithCancel(context.Background())
	s.Require().NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		cancel()
		orchestrator.Stop()
	})
	return orchestrator.Addr().String()
}

// relayAddr yields the external relay when one is configured, otherwise a
// fresh in-process one.
func (s *RelaySuite) relayAddr(t *testing.T) string {
	if s.Config.RelayAddr != "" {
		return s.Config.RelayAddr
	}
	return s.startRelay(t, relayOptions{})
}

// requireOwnRelay skips scenarios that depend on server-side settings the
// suite cannot impose on an external relay.
func (s *RelaySuite) requireOwnRelay(t *testing.T) {
	if s.Config.RelayAddr != "" {
		t.Skip("scenario needs its own relay settings, RELAY_ADDR is set")
	}
}

// settle gives the acceptor a beat: registration happens server-side after
// the dialer's handshake write has returned.
func (s *RelaySuite) settle() {
	time.Sleep(300 * time.Millisecond)
}

type relayClient struct {
	conn  net.Conn
	enc   *wire.Encoder
	dec   *wire.Decoder
	token string
}

// connect dials and identifies one raw test client. A non-nil cache wraps
// the stream cipher, exactly as the console client would.
func (s *RelaySuite) connect(t *testing.T, addr, token string, cache *primes.Cache) *relayClient {
	t.Helper()

	raw, err := net.Dial("tcp", addr)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = raw.Close() })

	conn := net.Conn(raw)
	if cache != nil {
		conn = cipherio.WrapConn(raw, cache)
	}
	s.Require().NoError(wire.WriteToken(conn, token))
	return &relayClient{conn: conn, enc: wire.NewEncoder(conn), dec: wire.NewDecoder(conn), token: token}
}

func (s *RelaySuite) send(c *relayClient, sender, body string) {
	s.Require().NoError(c.enc.Encode(domain.NewMessage(sender, body).WithSent(time.Now().UTC())))
}

// receive waits for the next relayed message within the suite timeout.
func (s *RelaySuite) receive(c *relayClient) domain.Message {
	s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(s.Config.Timeout)))
	m, err := c.dec.Decode()
	s.Require().NoError(err)
	return m
}

// silent asserts that nothing arrives for the given window.
func (s *RelaySuite) silent(c *relayClient, within time.Duration) {
	s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(within)))
	_, err := c.dec.Decode()
	var netErr net.Error
	s.Require().ErrorAs(err, &netErr)
	s.Require().True(netErr.Timeout())
}
