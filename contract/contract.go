//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// Task splits a worker's life into explicit phases. The workers.Loop runner
// drives it: Init exactly once, Step repeatedly until the context ends or a
// step returns a terminal error, Stop exactly once on every exit path, Init
// failure included.
type Task interface {
	Init(ctx context.Context) error
	Step(ctx context.Context) error
	Stop() error
}

// TaskState tracks where a driven Task stands in its lifecycle.
type TaskState int32

const (
	StateCreated TaskState = iota
	StateInitializing
	StateRunning
	StateStopping
	StateTerminated
)

func (s TaskState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Peer is one registered connection as the distributor sees it.
type Peer interface {
	// Send writes one message to the peer's connection.
	Send(m domain.Message) error
	// Close releases the underlying socket. Safe to call more than once.
	Close() error
	// Remote describes the peer's network address for logs.
	Remote() string
}

// IQueue decouples producers from the single blocking consumer.
type IQueue[T any] interface {
	Put(v T)
	Take(ctx context.Context) (T, error)
	Len() int
}

// IRegistry is the concurrent directory of live connections.
type IRegistry interface {
	// Put inserts unconditionally and returns any displaced peer; the
	// registry never closes connections itself, callers do.
	Put(id domain.ClientID, p Peer) Peer
	// Remove deletes the entry only while it still holds p, so a stale
	// release never evicts a newer connection under the same identifier.
	Remove(id domain.ClientID, p Peer) bool
	Get(id domain.ClientID) (Peer, bool)
	// SnapshotIDs returns the identifiers present at call time. The
	// snapshot is not isolated from concurrent mutation.
	SnapshotIDs() []domain.ClientID
	Len() int
}
