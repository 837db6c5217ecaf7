package runtime

import (
	"context"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Queue is an unbounded FIFO for many producers and one consumer. Put never
// blocks: a slow consumer grows memory instead of stalling producers.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

var _ contract.IQueue[domain.Envelope] = (*Queue[domain.Envelope])(nil)

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Put appends v and wakes the consumer.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Take blocks until an item is available or ctx ends. With a single
// consumer, items come out in global Put order.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return v, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
