// Package client implements the console side of the relay: dialing and
// identifying the connection, the sending and receiving halves, and the
// console rendering between them.
package client

import (
	"fmt"
	"net"
	"sync/atomic"

	"chat-relay/cipherio"
	"chat-relay/domain"
	"chat-relay/primes"
	"chat-relay/wire"
)

// Conn is an identified connection to the relay. The lost flag flips once,
// when either half notices the link is gone; the sender consults it before
// encoding so a dead link costs a console notice instead of a write.
type Conn struct {
	stream net.Conn
	lost   atomic.Bool
}

// Dial connects to the relay, optionally wraps the stream cipher and
// introduces the connection with a fresh identity token.
func Dial(addr string, cache *primes.Cache) (*Conn, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", addr, err)
	}
	conn, err := Identify(raw, cache)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return conn, nil
}

// Identify wraps an established connection and performs the token handshake.
// A nil cache leaves the stream in clear.
func Identify(raw net.Conn, cache *primes.Cache) (*Conn, error) {
	stream := raw
	if cache != nil {
		stream = cipherio.WrapConn(raw, cache)
	}
	if err := wire.WriteToken(stream, domain.NewToken()); err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	return &Conn{stream: stream}, nil
}

func (c *Conn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *Conn) Write(p []byte) (int, error) { return c.stream.Write(p) }

// Alive reports whether the link still looked usable the last time anyone
// checked. A false answer never turns true again, there is no reconnect.
func (c *Conn) Alive() bool { return !c.lost.Load() }

// MarkLost records that the link is gone.
func (c *Conn) MarkLost() { c.lost.Store(true) }

func (c *Conn) Close() error {
	c.lost.Store(true)
	return c.stream.Close()
}
