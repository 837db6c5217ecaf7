// Package wire implements the framed codec spoken between client and relay.
//
// Every frame is [version byte][uvarint body length][body]. The body is a
// protobuf wire message: field 1 sender, field 2 body, field 3 the sent
// timestamp in Unix nanoseconds. Unknown fields are skipped on decode so an
// older reader tolerates a newer writer.
//
// The handshake that precedes frames is not framed at all: exactly
// domain.TokenLength raw bytes, client to server, immediately after connect.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"chat-relay/domain"
	"chat-relay/errors"
)

const (
	// Version is the only frame version spoken today.
	Version byte = 0x01

	// MaxBodyLen bounds a frame body. Anything larger is read as stream
	// corruption, not as a very long message.
	MaxBodyLen = 1 << 20

	fieldSender = 1
	fieldBody   = 2
	fieldSent   = 3
)

type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one framed message in a single Write call.
func (e *Encoder) Encode(m domain.Message) error {
	body := appendMessage(nil, m)
	frame := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	frame = append(frame, Version)
	frame = binary.AppendUvarint(frame, uint64(len(body)))
	frame = append(frame, body...)
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func appendMessage(b []byte, m domain.Message) []byte {
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(m.Sender))
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(m.Body))
	if !m.Sent.IsZero() {
		b = protowire.AppendTag(b, fieldSent, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(m.Sent.UnixNano()))
	}
	return b
}

type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads one frame and decodes its body.
//
// A malformed body yields an error wrapping errors.ErrDecode and leaves the
// stream aligned on the next frame, so callers can log and keep reading.
// Frame-level problems (unknown version, oversized length, truncated stream)
// lose the frame boundary and surface as plain errors; a clean peer close
// before any frame byte is io.EOF.
func (d *Decoder) Decode() (domain.Message, error) {
	version, err := d.r.ReadByte()
	if err != nil {
		return domain.Message{}, err
	}
	if version != Version {
		return domain.Message{}, fmt.Errorf("unsupported frame version 0x%02x", version)
	}
	length, err := binary.ReadUvarint(d.r)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read frame length: %w", err)
	}
	if length > MaxBodyLen {
		return domain.Message{}, fmt.Errorf("frame body of %d bytes exceeds %d", length, MaxBodyLen)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return domain.Message{}, fmt.Errorf("read frame body: %w", err)
	}
	m, err := parseMessage(body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return m, nil
}

func parseMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldSender && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			m.Sender = string(v)
			b = b[n:]
		case num == fieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			m.Body = string(v)
			b = b[n:]
		case num == fieldSent && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			m.Sent = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

// WriteToken sends the raw identity token, unframed.
func WriteToken(w io.Writer, token string) error {
	if len(token) != domain.TokenLength {
		return fmt.Errorf("%w: token is %d bytes, want %d", errors.ErrHandshake, len(token), domain.TokenLength)
	}
	if _, err := io.WriteString(w, token); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrHandshake, err)
	}
	return nil
}

// ReadToken reads exactly domain.TokenLength raw bytes. A peer closing or
// erroring before the full token arrives fails the handshake.
func ReadToken(r io.Reader) ([]byte, error) {
	token := make([]byte, domain.TokenLength)
	if _, err := io.ReadFull(r, token); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHandshake, err)
	}
	return token, nil
}
