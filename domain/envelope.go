package domain

// Envelope pairs a received message with the connection that produced it,
// so fan-out can exclude the author. Created by a receiver, consumed exactly
// once by the distributor.
type Envelope struct {
	Author ClientID
	Msg    Message
}
