package test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"chat-relay/client"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/primes"
	"chat-relay/repositories"
	"chat-relay/sink"
)

type testRelaySuite struct {
	RelaySuite
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, &testRelaySuite{})
}

func (s *testRelaySuite) TestFanoutExcludesTheAuthor() {
	t := s.T()
	s.Section(t, "Fan-out")
	addr := s.relayAddr(t)

	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	carol := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	s.send(alice, "alice", "hello everyone")

	for _, c := range []*relayClient{bob, carol} {
		got := s.receive(c)
		s.Require().Equal("alice", got.Sender)
		s.Require().Equal("hello everyone", got.Body)
		s.Require().False(got.Sent.IsZero())
	}

	// The author hears nothing, and nobody gets a second copy
	s.silent(alice, 500*time.Millisecond)
	s.silent(bob, 200*time.Millisecond)
}

func (s *testRelaySuite) TestEveryMessageKeepsItsPlaceInLine() {
	t := s.T()
	s.Section(t, "Ordering")
	addr := s.relayAddr(t)

	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, body := range bodies {
		s.send(alice, "alice", body)
	}

	received := lo.Map(bodies, func(_ string, _ int) string {
		return s.receive(bob).Body
	})
	s.Require().Equal(bodies, received)
}

func (s *testRelaySuite) TestPeerVanishingMidTrafficEvictsOnlyThatPeer() {
	t := s.T()
	s.Section(t, "Eviction")
	addr := s.relayAddr(t)

	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	carol := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	s.Require().NoError(bob.conn.Close())

	// The relay may only notice bob on the write, and must carry on
	s.send(alice, "alice", "bye bob")
	s.Require().Equal("bye bob", s.receive(carol).Body)

	s.send(alice, "alice", "still here?")
	s.Require().Equal("still here?", s.receive(carol).Body)
}

func (s *testRelaySuite) TestShortHandshakeNeverJoinsTheRelay() {
	t := s.T()
	s.Section(t, "Handshake")
	addr := s.relayAddr(t)

	// A client that gives up halfway through its token
	short, err := net.Dial("tcp", addr)
	s.Require().NoError(err)
	_, err = short.Write([]byte("too-short"))
	s.Require().NoError(err)
	s.Require().NoError(short.Close())

	// Then regular traffic is unaffected
	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	s.send(alice, "alice", "anyone there?")
	s.Require().Equal("anyone there?", s.receive(bob).Body)
}

func (s *testRelaySuite) TestSameTokenDisplacesThePriorConnection() {
	t := s.T()
	s.Section(t, "Displacement")
	addr := s.relayAddr(t)

	token := domain.NewToken()
	first := s.connect(t, addr, token, nil)
	s.settle()
	second := s.connect(t, addr, token, nil)
	s.settle()

	// The first connection is closed by the relay, not merely ignored
	s.Require().NoError(first.conn.SetReadDeadline(time.Now().Add(s.Config.Timeout)))
	_, err := first.dec.Decode()
	s.Require().Error(err)
	s.Require().NotErrorIs(err, os.ErrDeadlineExceeded)

	// And only the second one receives traffic
	alice := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()
	s.send(alice, "alice", "who is there?")
	s.Require().Equal("who is there?", s.receive(second).Body)
}

func (s *testRelaySuite) TestForbiddenWordsNeverLeaveTheRelay() {
	t := s.T()
	s.requireOwnRelay(t)
	s.Section(t, "Moderation")

	dictionary := filepath.Join(t.TempDir(), "censored.txt")
	s.Require().NoError(os.WriteFile(dictionary, []byte("# forbidden\nmidnight\n"), 0o600))
	addr := s.startRelay(t, relayOptions{censorFile: dictionary})

	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	// Leet variants are caught too
	s.send(alice, "alice", "meet at m1dn1ght!")
	s.Require().Equal("meet at ********!", s.receive(bob).Body)
}

func (s *testRelaySuite) TestCipheredRelayEndToEnd() {
	t := s.T()
	s.requireOwnRelay(t)
	s.Section(t, "Cipher")

	// Small bound keeps the sieve fast, both ends must share it
	cache := primes.Generate(1 << 17)
	addr := s.startRelay(t, relayOptions{cache: cache})

	alice := s.connect(t, addr, domain.NewToken(), cache)
	bob := s.connect(t, addr, domain.NewToken(), cache)
	s.settle()

	s.send(alice, "alice", "secrets stay secret")
	s.Require().Equal("secrets stay secret", s.receive(bob).Body)

	s.send(bob, "bob", "both directions work")
	s.Require().Equal("both directions work", s.receive(alice).Body)
}

func (s *testRelaySuite) TestAuditTrailRecordsTheTraffic() {
	t := s.T()
	s.requireOwnRelay(t)
	s.Section(t, "Audit")

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository := repositories.NewSessionRepository(db, s.log)
	addr := s.startRelay(t, relayOptions{
		sinks: []contract.EventSink{sink.NewAuditSink(repository, s.log)},
	})

	alice := s.connect(t, addr, domain.NewToken(), nil)
	bob := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	s.send(alice, "alice", "for the record")
	s.Require().Equal("for the record", s.receive(bob).Body)

	s.Require().Eventually(func() bool {
		records, err := repository.List(0)
		if err != nil {
			return false
		}
		opened := lo.CountBy(records, func(r repositories.AuditRecord) bool {
			return r.Kind == sink.KindSessionOpened
		})
		relayed := lo.Filter(records, func(r repositories.AuditRecord, _ int) bool {
			return r.Kind == sink.KindMessageRelayed
		})
		return opened == 2 && len(relayed) == 1 &&
			relayed[0].Detail == "sender=alice recipients=1"
	}, s.Config.Timeout, 50*time.Millisecond)
}

// lockedBuffer lets the console client's receiving half write while the test
// polls the rendered output.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func (s *testRelaySuite) TestConsoleClientSpeaksTheProtocol() {
	t := s.T()
	s.Section(t, "Console client")
	addr := s.relayAddr(t)

	// --- STEP 1: the console client dials and identifies itself ---
	conn, err := client.Dial(addr, nil)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	console := &lockedBuffer{}
	render := client.NewRenderer(console, false)
	log := s.log

	receiverDone := make(chan error, 1)
	go func() {
		receiverDone <- client.NewReceiver(conn, render, log).Run(context.Background())
	}()

	bob := s.connect(t, addr, domain.NewToken(), nil)
	s.settle()

	// --- STEP 2: a typed line reaches the other peer ---
	s.Run("Step 2: typed line is relayed", func() {
		sender := client.NewSender(conn, "alice",
			strings.NewReader("good evening\n/quit\n"), render, log)
		s.Require().NoError(sender.Run(context.Background()))

		got := s.receive(bob)
		s.Require().Equal("alice", got.Sender)
		s.Require().Equal("good evening", got.Body)
	})

	// --- STEP 3: a reply lands on the console ---
	s.Run("Step 3: reply is rendered", func() {
		s.send(bob, "bob", "welcome back")
		s.Require().Eventually(func() bool {
			return strings.Contains(console.String(), "bob : welcome back")
		}, s.Config.Timeout, 20*time.Millisecond)
	})

	s.Require().NoError(conn.Close())
	s.Require().NoError(<-receiverDone)
}
