package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/vibeteen/mural/internal/adapters/codec"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

const keyPrefix = "doc/"

func docKey(col model.Collection, id string) []byte {
	return []byte(keyPrefix + string(col) + "/" + id)
}

func collectionPrefix(col model.Collection) []byte {
	return []byte(keyPrefix + string(col) + "/")
}

type subscriber struct {
	ch    chan model.Snapshot
	order model.Ordering
}

// offer replaces whatever the reader has not consumed yet with snap.
// Callers hold the store lock, so there is a single producer.
func (s *subscriber) offer(snap model.Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

type collectionState struct {
	index   *orderIndex
	version uint64
	skipped int
	subs    map[*subscriber]struct{}
}

// DocStore keeps CBOR documents in Badger and an in-memory ordering index per
// collection. Writes, index updates and snapshot fan-out are serialized.
type DocStore struct {
	db       *badger.DB
	records  *codec.Records
	calendar model.Calendar
	logger   logger.Logger
	newID    func() string

	mu     sync.Mutex
	cols   map[model.Collection]*collectionState
	closed bool
	done   chan struct{}

	gcStop chan struct{}
	gcDone chan struct{}
}

var _ Store = (*DocStore)(nil)

// Open opens the Badger database described by cfg and loads every stored
// document into the ordering indexes. Documents that fail validation are
// counted and left out of snapshots.
func Open(ctx context.Context, cfg Config, opts ...Option) (*DocStore, error) {
	s := &DocStore{
		calendar: model.UTC(),
		newID:    uuid.NewString,
		cols:     make(map[model.Collection]*collectionState, len(model.Collections)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("store")
	}
	s.records = codec.NewRecords(s.calendar)
	for _, col := range model.Collections {
		s.cols[col] = &collectionState{index: newOrderIndex(), subs: make(map[*subscriber]struct{})}
	}

	db, err := openBadger(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenInMemory opens a DocStore that never touches the disk.
func OpenInMemory(ctx context.Context, opts ...Option) (*DocStore, error) {
	return Open(ctx, InMemoryConfig(), opts...)
}

func (s *DocStore) load(ctx context.Context) error {
	return s.db.View(func(txn *badger.Txn) error {
		for _, col := range model.Collections {
			st := s.cols[col]
			prefix := collectionPrefix(col)
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				raw, err := item.ValueCopy(nil)
				if err != nil {
					it.Close()
					return fmt.Errorf("read %s: %w", item.Key(), err)
				}
				rec, err := s.decode(col, raw)
				if err != nil {
					st.skipped++
					s.logger.Warn(ctx, "skipping malformed document",
						logger.String("collection", string(col)),
						logger.String("key", string(item.Key())),
						logger.Error(err))
					continue
				}
				st.index.put(rec)
			}
			it.Close()
			if st.skipped > 0 {
				metrics.RecordSnapshotRecordsSkipped(string(col), st.skipped)
			}
			recordSize(col, st.index.len())
		}
		return nil
	})
}

func (s *DocStore) decode(col model.Collection, raw []byte) (model.Record, error) {
	doc, err := codec.UnmarshalDocument(raw)
	if err != nil {
		return nil, err
	}
	return s.records.Decode(col, doc)
}

func (s *DocStore) state(col model.Collection) (*collectionState, error) {
	st, ok := s.cols[col]
	if !ok {
		return nil, fmt.Errorf("%w: %q", codec.ErrUnknownCollection, col)
	}
	return st, nil
}

// Append implements Store.
func (s *DocStore) Append(ctx context.Context, col model.Collection, rec model.Record) (string, error) {
	const op = "append"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(op, msSince(start)) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rec == nil || rec.Kind() != col.Kind() {
		metrics.RecordStoreError(op)
		return "", fmt.Errorf("%w: %s", ErrKindMismatch, col)
	}

	doc, err := s.records.Encode(rec)
	if err != nil {
		metrics.RecordStoreError(op)
		return "", err
	}
	id := rec.RecordID()
	if id == "" {
		id = s.newID()
		doc[codec.FieldID] = id
	}
	// Reject documents that the next load would skip.
	stored, err := s.records.Decode(col, doc)
	if err != nil {
		metrics.RecordStoreError(op)
		return "", err
	}
	raw, err := codec.MarshalDocument(doc)
	if err != nil {
		metrics.RecordStoreError(op)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	st, err := s.state(col)
	if err != nil {
		return "", err
	}

	created := false
	err = s.db.Update(func(txn *badger.Txn) error {
		key := docKey(col, id)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		created = true
		return txn.Set(key, raw)
	})
	if err != nil {
		metrics.RecordStoreError(op)
		return "", fmt.Errorf("append %s/%s: %w", col, id, err)
	}
	if !created {
		s.logger.Debug(ctx, "append ignored, id exists",
			logger.String("collection", string(col)), logger.String("id", id))
		return id, fmt.Errorf("%w: %s/%s", ErrExists, col, id)
	}

	st.index.put(stored)
	s.publishLocked(col, st)
	return id, nil
}

// UpdateFields implements Store.
func (s *DocStore) UpdateFields(ctx context.Context, col model.Collection, id string, fields codec.Document) error {
	const op = "update"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(op, msSince(start)) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := fields[codec.FieldID]; ok {
		return fmt.Errorf("%w: %s", ErrImmutableField, codec.FieldID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	st, err := s.state(col)
	if err != nil {
		return err
	}

	var updated model.Record
	err = s.db.Update(func(txn *badger.Txn) error {
		key := docKey(col, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, col, id)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		doc, err := codec.UnmarshalDocument(raw)
		if err != nil {
			return err
		}
		for k, v := range fields {
			if setOp, ok := v.(model.SetOp); ok {
				doc[k] = codec.ApplySetOp(doc[k], setOp)
				continue
			}
			doc[k] = v
		}
		rec, err := s.records.Decode(col, doc)
		if err != nil {
			return err
		}
		out, err := codec.MarshalDocument(doc)
		if err != nil {
			return err
		}
		updated = rec
		return txn.Set(key, out)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreError(op)
		}
		return err
	}

	st.index.put(updated)
	s.publishLocked(col, st)
	return nil
}

// Get implements Store.
func (s *DocStore) Get(ctx context.Context, col model.Collection, id string) (model.Record, error) {
	const op = "get"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(op, msSince(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.cols[col]; !ok {
		return nil, fmt.Errorf("%w: %q", codec.ErrUnknownCollection, col)
	}

	var rec model.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(col, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, col, id)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = s.decode(col, raw)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return rec, nil
}

// Subscribe implements Store.
func (s *DocStore) Subscribe(ctx context.Context, col model.Collection, order model.Ordering) (<-chan model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	st, err := s.state(col)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan model.Snapshot, 1), order: order}
	sub.ch <- s.snapshotLocked(col, st, order)
	st.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := st.subs[sub]; ok {
			delete(st.subs, sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// Count implements Store.
func (s *DocStore) Count(_ context.Context, col model.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cols[col]
	if !ok {
		return 0
	}
	return st.index.len()
}

// Close implements Store. It is safe to call more than once.
func (s *DocStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	for _, st := range s.cols {
		for sub := range st.subs {
			close(sub.ch)
		}
		clear(st.subs)
	}
	s.mu.Unlock()

	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

// publishLocked bumps the collection version and pushes one snapshot per
// ordering to every subscriber.
func (s *DocStore) publishLocked(col model.Collection, st *collectionState) {
	st.version++
	recordSize(col, st.index.len())
	if len(st.subs) == 0 {
		return
	}
	built := make(map[model.Ordering]model.Snapshot, 2)
	for sub := range st.subs {
		snap, ok := built[sub.order]
		if !ok {
			snap = s.snapshotLocked(col, st, sub.order)
			built[sub.order] = snap
		}
		sub.offer(snap)
	}
	metrics.RecordSnapshotPublished(string(col))
}

// snapshotLocked builds a snapshot of col. Records are shared between
// subscribers and must be treated as read-only.
func (s *DocStore) snapshotLocked(col model.Collection, st *collectionState, order model.Ordering) model.Snapshot {
	recs := st.index.records()
	if order == model.OrderByID {
		slices.SortFunc(recs, func(a, b model.Record) int {
			return strings.Compare(a.RecordID(), b.RecordID())
		})
	}
	return model.Snapshot{
		Collection: col,
		Version:    st.version,
		Records:    recs,
		Skipped:    st.skipped,
	}
}

func recordSize(col model.Collection, n int) {
	switch col {
	case model.CollectionMembers:
		metrics.UpdateMemberCount(n)
	case model.CollectionEvents:
		metrics.UpdateBoardSize(n)
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
