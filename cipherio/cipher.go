// Package cipherio wraps a connection's byte streams in the relay's XOR
// keystream. Each direction seeds its own key from the first plaintext byte
// it carries: that byte travels once in clear as a one-byte prefix, then
// every plaintext byte (the first one included) is XORed against the derived
// key. Both ends start the keystream at index 1; after that the position
// wraps over the whole key.
//
// The key schedule is fixed arithmetic over a shared prime cache. Ends with
// different caches produce different keys and unreadable streams, so the
// cache file must be identical on both sides.
package cipherio

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"chat-relay/errors"
	"chat-relay/primes"
)

const keyLen = 256

// keySchedule expands a one-byte seed into keyLen bytes of key material.
func keySchedule(seed byte, cache *primes.Cache) ([]byte, error) {
	notSeed := int(^seed)
	s := int(seed)
	s = s*notSeed + s*s
	if s <= 2 {
		s = 3
	}
	s %= cache.Biggest()

	lower := cache.Lower(s)
	notLower := ^lower & 0xFFFFFF
	upper := cache.Upper(s)
	notUpper := ^upper & 0xFFFFFF

	k := uint64(lower) * uint64(notLower) * uint64(upper) * uint64(notUpper)
	k &^= 1 << 63

	var text []byte
	for k > 0 && len(text) < keyLen {
		text = strconv.AppendUint(text, k, 32)
		k >>= 1
	}
	if len(text) < keyLen {
		return nil, fmt.Errorf("%w: %d bytes derived from seed %d", errors.ErrKeyExhausted, len(text), seed)
	}
	return text[:keyLen], nil
}

// Writer encrypts everything written through it.
type Writer struct {
	w     io.Writer
	cache *primes.Cache
	key   []byte
	pos   int
}

func NewWriter(w io.Writer, cache *primes.Cache) *Writer {
	return &Writer{w: w, cache: cache}
}

// Write derives the key from the first plaintext byte on first use, emits
// that byte raw as the seed prefix, then encrypts p in full. The returned
// count covers p, not the prefix.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var out []byte
	if w.key == nil {
		key, err := keySchedule(p[0], w.cache)
		if err != nil {
			return 0, err
		}
		w.key = key
		w.pos = 1
		out = make([]byte, 0, len(p)+1)
		out = append(out, p[0])
	} else {
		out = make([]byte, 0, len(p))
	}
	for _, b := range p {
		out = append(out, b^w.key[w.pos])
		w.pos = (w.pos + 1) % len(w.key)
	}
	if _, err := w.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Reader decrypts everything read through it.
type Reader struct {
	r     io.Reader
	cache *primes.Cache
	key   []byte
	pos   int
}

func NewReader(r io.Reader, cache *primes.Cache) *Reader {
	return &Reader{r: r, cache: cache}
}

// Read consumes the seed prefix on first use, then decrypts into p.
func (r *Reader) Read(p []byte) (int, error) {
	if r.key == nil {
		var seed [1]byte
		if _, err := io.ReadFull(r.r, seed[:]); err != nil {
			return 0, err
		}
		key, err := keySchedule(seed[0], r.cache)
		if err != nil {
			return 0, err
		}
		r.key = key
		r.pos = 1
	}
	n, err := r.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] ^= r.key[r.pos]
		r.pos = (r.pos + 1) % len(r.key)
	}
	return n, err
}

// Conn overlays the keystream on a network connection, one independent
// direction each way. Everything else delegates to the wrapped conn.
type Conn struct {
	net.Conn
	r *Reader
	w *Writer
}

func WrapConn(c net.Conn, cache *primes.Cache) *Conn {
	return &Conn{Conn: c, r: NewReader(c, cache), w: NewWriter(c, cache)}
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.w.Write(p)
}
