// Package event describes what the relay reports about live sessions.
// Events feed the audit trail and the operational log, never the chat wire.
package event

import (
	"time"

	"chat-relay/domain"
)

// DomainEvent is implemented by every session-level fact the relay emits.
type DomainEvent interface {
	// Session names the connection the event is about.
	Session() domain.ClientID
	// OccurredAt is the moment the fact was observed.
	OccurredAt() time.Time
}

// SessionOpened fires after a successful handshake and registration.
type SessionOpened struct {
	ID     domain.ClientID
	Remote string
	At     time.Time
}

func (e SessionOpened) Session() domain.ClientID { return e.ID }
func (e SessionOpened) OccurredAt() time.Time    { return e.At }

// SessionClosed fires when a receiver releases its connection, whatever the
// cause. Reason keeps the operator-facing wording, not an error chain.
type SessionClosed struct {
	ID     domain.ClientID
	Reason string
	At     time.Time
}

func (e SessionClosed) Session() domain.ClientID { return e.ID }
func (e SessionClosed) OccurredAt() time.Time    { return e.At }

// MessageRelayed fires once per fan-out cycle, after delivery attempts.
// Recipients counts successful writes. Bodies never reach the audit trail.
type MessageRelayed struct {
	Author     domain.ClientID
	Sender     string
	Recipients int
	At         time.Time
}

func (e MessageRelayed) Session() domain.ClientID { return e.Author }
func (e MessageRelayed) OccurredAt() time.Time    { return e.At }

// PeerDropped fires when a fan-out write fails and the peer is evicted.
type PeerDropped struct {
	Peer   domain.ClientID
	Author domain.ClientID
	Reason string
	At     time.Time
}

func (e PeerDropped) Session() domain.ClientID { return e.Peer }
func (e PeerDropped) OccurredAt() time.Time    { return e.At }
