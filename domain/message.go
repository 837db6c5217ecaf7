// Package domain contains the core concepts of the relay.
// A Message is immutable once its sent timestamp is stamped.
package domain

import (
	"fmt"
	"time"
)

// DisplayFormat renders the sent timestamp for consoles, e.g. "(Jan, 2 15:04:05) ".
const DisplayFormat = "(Jan, 2 15:04:05) "

// Message is the unit relayed between clients. Sender and Body are fixed at
// construction. Sent is stamped exactly once, by the sending side, right
// before the message goes out; it stays zero for messages never sent.
type Message struct {
	Sender string
	Body   string
	Sent   time.Time
}

func NewMessage(sender, body string) Message {
	return Message{Sender: sender, Body: body}
}

// WithSent returns a copy stamped with the given moment in UTC.
func (m Message) WithSent(t time.Time) Message {
	m.Sent = t.UTC()
	return m
}

// Display renders the message for a console. A zero Sent omits the
// timestamp prefix, so an unstamped or undecodable message still prints.
func (m Message) Display() string {
	if m.Sent.IsZero() {
		return fmt.Sprintf("%s : %s", m.Sender, m.Body)
	}
	return m.Sent.Format(DisplayFormat) + fmt.Sprintf("%s : %s", m.Sender, m.Body)
}
