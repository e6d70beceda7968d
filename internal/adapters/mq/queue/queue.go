// Package queue is the outbox between sessions and the store: optimistic
// edits are applied locally at once and their writes are delivered here
// asynchronously.
package queue

import (
	"context"
	"sync"

	"github.com/vibeteen/mural/internal/adapters/codec"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Op is the kind of store write.
type Op int

const (
	// OpAppend appends Record to Collection.
	OpAppend Op = iota
	// OpUpdate merges Fields into Collection/DocID.
	OpUpdate
)

func (o Op) String() string {
	switch o {
	case OpAppend:
		return "append"
	case OpUpdate:
		return "update"
	}
	return "unknown"
}

// Write is one pending store operation.
type Write struct {
	Op         Op
	Collection model.Collection
	// DocID is the target of an update. For appends it mirrors Record's id.
	DocID  string
	Record model.Record
	Fields codec.Document
	// Done, when set, is called once with the outcome of the write.
	Done func(err error)
}

// Finish reports err to the write's Done callback, if any.
func (w Write) Finish(err error) {
	if w.Done != nil {
		w.Done(err)
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a write. Returns false if the outbox is full or closed.
	Enqueue(ctx context.Context, w Write) bool

	// Dequeue returns a channel that receives writes as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Write

	// Len returns the current number of pending writes.
	Len(ctx context.Context) int

	// Close stops accepting writes. Pending ones can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	writes   chan Write
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.writes = make(chan Write, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a write to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, w Write) bool { //nolint:gocritic // hugeParam: Write is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
	}

	select {
	case q.writes <- w:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.writes))
		return true
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel that will receive writes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Write {
	out := make(chan Write)
	go func() {
		defer close(out)
		for w := range q.writes {
			select {
			case out <- w:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.writes))
			case <-ctx.Done():
				w.Finish(ErrStopped)
				return
			}
		}
	}()
	return out
}

// Len returns the current number of pending writes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.writes)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting writes. Safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.writes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
