package repository

import (
	"hash/fnv"

	"github.com/vibeteen/mural/internal/domain/model"
)

// Treap-based ordering index for one collection.
//
// Ordering: timestamp DESC, then id ASC (deterministic).
// "less" means "comes earlier in the feed", so in-order traversal yields
// the snapshot from newest to oldest. Each node carries the decoded record
// so snapshots are built without touching the disk.

type sortKey struct {
	ts int64 // unix nanoseconds
	id string
}

func keyOf(rec model.Record) sortKey {
	var ts int64
	if t := rec.Timestamp(); !t.IsZero() {
		ts = t.UnixNano()
	}
	return sortKey{ts: ts, id: rec.RecordID()}
}

// less returns true if a should appear before b (newest first).
func less(a, b sortKey) bool {
	if a.ts != b.ts {
		return a.ts > b.ts
	}
	return a.id < b.id
}

type node struct {
	key   sortKey
	rec   model.Record
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priorityOf hashes the id so the tree shape is random-looking but reproducible.
func priorityOf(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, k sortKey, rec model.Record) *node {
	if n == nil {
		return &node{key: k, rec: rec, prio: priorityOf(k.id), size: 1}
	}
	if less(k, n.key) {
		n.left = insert(n.left, k, rec)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, rec)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k sortKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

func collect(n *node, out *[]model.Record) {
	if n == nil {
		return
	}
	collect(n.left, out)
	*out = append(*out, n.rec)
	collect(n.right, out)
}

// orderIndex keeps one collection's records sorted newest first.
// It is not safe for concurrent use; DocStore serializes access.
type orderIndex struct {
	root *node
	keys map[string]sortKey
}

func newOrderIndex() *orderIndex {
	return &orderIndex{keys: make(map[string]sortKey)}
}

// put inserts or replaces the record with rec's id.
func (x *orderIndex) put(rec model.Record) {
	id := rec.RecordID()
	if old, ok := x.keys[id]; ok {
		x.root = deleteNode(x.root, old)
	}
	k := keyOf(rec)
	x.root = insert(x.root, k, rec)
	x.keys[id] = k
}

func (x *orderIndex) has(id string) bool {
	_, ok := x.keys[id]
	return ok
}

func (x *orderIndex) len() int { return nsize(x.root) }

// records returns every record newest first.
func (x *orderIndex) records() []model.Record {
	out := make([]model.Record, 0, x.len())
	collect(x.root, &out)
	return out
}
