package errors

import "fmt"

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrStopTask     = fmt.Errorf("stop requested")
	ErrDecode       = fmt.Errorf("undecodable message")
	ErrHandshake    = fmt.Errorf("handshake failed")
	ErrEmptyWords   = fmt.Errorf("no words have been found")
	ErrKeyExhausted = fmt.Errorf("key material exhausted")
)
