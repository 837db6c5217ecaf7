package workers

import (
	"net"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/wire"
)

// Session binds a registered connection to its outbound encoder. The
// distributor is the only writer after the handshake, so Send needs no
// locking; Close may race with Send and stays idempotent.
type Session struct {
	ID domain.ClientID

	conn      net.Conn
	enc       *wire.Encoder
	closeOnce sync.Once
	closeErr  error
}

var _ contract.Peer = (*Session)(nil)

func NewSession(id domain.ClientID, conn net.Conn) *Session {
	return &Session{ID: id, conn: conn, enc: wire.NewEncoder(conn)}
}

func (s *Session) Send(m domain.Message) error {
	return s.enc.Encode(m)
}

// Close releases the socket exactly once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) Remote() string {
	return s.conn.RemoteAddr().String()
}

// Conn exposes the raw connection for the inbound, receiver-owned side.
func (s *Session) Conn() net.Conn {
	return s.conn
}
