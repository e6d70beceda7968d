// Package dedupe remembers publish submissions so a retried submit is recognised
// instead of logging the same act twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Default bound on remembered submissions.
const defaultMaxSize = 50_000

// Deduper records seen submission keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// It returns true when key had already been recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the submission can be attempted again, e.g. after
	// the outbox refused it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key scopes a client submission id to its member.
func Key(memberID, submissionID string) string {
	return memberID + "\x00" + submissionID
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest once full.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
