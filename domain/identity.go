package domain

import "github.com/google/uuid"

// TokenLength is the exact number of raw bytes a client writes right after
// connecting. It matches the text form of a UUID.
const TokenLength = 36

// relayNamespace seeds the deterministic derivation below so that the same
// token always maps to the same ClientID, across restarts and processes.
var relayNamespace = uuid.MustParse("8a6e1a34-2c1f-4a75-9d5b-48f2676c3f19")

// ClientID identifies one registered connection. Two handshakes presenting
// bit-identical tokens collide to the same ClientID on purpose.
type ClientID uuid.UUID

// DeriveClientID hashes the raw handshake token into a ClientID.
func DeriveClientID(token []byte) ClientID {
	return ClientID(uuid.NewMD5(relayNamespace, token))
}

// NewToken generates the identity token a client declares at connect time.
func NewToken() string {
	return uuid.NewString()
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}
