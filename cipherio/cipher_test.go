package cipherio

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/primes"
)

// testCache is large enough that every byte seed lands strictly between
// cached primes during the schedule arithmetic.
var testCache = primes.Generate(1 << 17)

func TestKeySchedule_DeterministicPerSeed(t *testing.T) {
	req := require.New(t)

	for _, seed := range []byte{0, 1, 42, 200, 255} {
		first, err := keySchedule(seed, testCache)
		req.NoError(err)
		second, err := keySchedule(seed, testCache)
		req.NoError(err)

		// Then the same seed always derives the same key
		req.Equal(first, second)
		req.Len(first, keyLen)

		// And the material is base-32 text by construction
		for _, b := range first {
			req.True((b >= '0' && b <= '9') || (b >= 'a' && b <= 'v'))
		}
	}
}

func TestRoundTrip_SingleWrite(t *testing.T) {
	req := require.New(t)
	var wire bytes.Buffer
	plaintext := []byte("hello relay")

	// When the plaintext goes through the writer then the reader
	n, err := NewWriter(&wire, testCache).Write(plaintext)
	req.NoError(err)
	req.Equal(len(plaintext), n)

	// Then the wire carries a one-byte seed prefix
	req.Equal(len(plaintext)+1, wire.Len())
	req.Equal(plaintext[0], wire.Bytes()[0])

	out := make([]byte, len(plaintext))
	_, err = io.ReadFull(NewReader(&wire, testCache), out)
	req.NoError(err)
	req.Equal(plaintext, out)
}

func TestRoundTrip_ChunkedWrites(t *testing.T) {
	req := require.New(t)
	var wire bytes.Buffer
	w := NewWriter(&wire, testCache)

	// Given a stream written in several pieces
	for _, chunk := range []string{"one ", "two ", "three"} {
		_, err := w.Write([]byte(chunk))
		req.NoError(err)
	}

	// Then a reader draining byte by byte still reconstructs it
	r := NewReader(&wire, testCache)
	var got []byte
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n > 0 {
			got = append(got, one[0])
		}
		if err == io.EOF {
			break
		}
		req.NoError(err)
	}
	req.Equal("one two three", string(got))
}

func TestRoundTrip_LongStreamWrapsTheKey(t *testing.T) {
	req := require.New(t)
	var wire bytes.Buffer

	// Given a payload several times longer than the key
	plaintext := bytes.Repeat([]byte("rotating keystream "), 100)

	_, err := NewWriter(&wire, testCache).Write(plaintext)
	req.NoError(err)

	out := make([]byte, len(plaintext))
	_, err = io.ReadFull(NewReader(&wire, testCache), out)
	req.NoError(err)
	req.Equal(plaintext, out)
}

func TestWriter_CiphertextDiffersFromPlaintext(t *testing.T) {
	req := require.New(t)
	var wire bytes.Buffer
	plaintext := []byte("not in clear on the wire")

	_, err := NewWriter(&wire, testCache).Write(plaintext)
	req.NoError(err)

	// Then the encrypted tail never equals the plaintext
	req.NotEqual(plaintext, wire.Bytes()[1:])
}

func TestConn_PipedDirectionsAreIndependent(t *testing.T) {
	req := require.New(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	wrappedClient := WrapConn(client, testCache)
	wrappedServer := WrapConn(server, testCache)

	done := make(chan error, 1)
	go func() {
		_, err := wrappedClient.Write([]byte("ping"))
		done <- err
	}()

	buf := make([]byte, 4)
	_, err := io.ReadFull(wrappedServer, buf)
	req.NoError(err)
	req.NoError(<-done)
	req.Equal("ping", string(buf))

	// And the reverse direction seeds its own keystream
	go func() {
		_, err := wrappedServer.Write([]byte("pong"))
		done <- err
	}()
	_, err = io.ReadFull(wrappedClient, buf)
	req.NoError(err)
	req.NoError(<-done)
	req.Equal("pong", string(buf))
}
