// Package worker delivers outbox writes to the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/vibeteen/mural/internal/adapters/codec"
	"github.com/vibeteen/mural/internal/adapters/mq/queue"
	"github.com/vibeteen/mural/internal/adapters/repository"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

const (
	defaultWriteTimeout = 10 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Writer is the part of the store workers write to.
type Writer interface {
	Append(ctx context.Context, col model.Collection, rec model.Record) (string, error)
	UpdateFields(ctx context.Context, col model.Collection, id string, fields codec.Document) error
}

// Queue defines how workers receive writes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Write
}

// Worker delivers writes until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue        Queue
	writer       Writer
	name         string
	writeTimeout time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, writer Writer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:        q,
		writer:       writer,
		name:         "worker",
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run drains the queue. It returns when the queue is closed and empty or ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	writes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case write, ok := <-writes:
			if !ok {
				return
			}
			if err := w.process(ctx, write); failed(err) {
				w.logger.Error(ctx, "write failed",
					logger.String("op", write.Op.String()),
					logger.String("collection", string(write.Collection)),
					logger.String("docID", write.DocID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown waits for the worker to finish or ctx to expire.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process delivers one write and reports the outcome to its Done callback.
func (w *InMemoryWorker) process(ctx context.Context, write queue.Write) (err error) { //nolint:gocritic // hugeParam: Write is passed by value for channel semantics
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if failed(err) {
			metrics.RecordWorkerError()
			metrics.RecordPublishFailure(string(write.Collection))
		}
		write.Finish(err)
	}()

	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	switch write.Op {
	case queue.OpAppend:
		if write.Record == nil {
			return errors.New("append without record")
		}
		_, err = w.writer.Append(writeCtx, write.Collection, write.Record)
	case queue.OpUpdate:
		err = w.writer.UpdateFields(writeCtx, write.Collection, write.DocID, write.Fields)
	default:
		err = fmt.Errorf("unknown op %d", write.Op)
	}
	return err
}

// failed reports whether err is a delivery failure. An append whose id is
// already stored is not one; its Done callback still sees ErrExists.
func failed(err error) bool {
	return err != nil && !errors.Is(err, repository.ErrExists)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	stopOnce sync.Once
}

// NewPool creates a pool of workerCount workers. A count below one uses runtime.NumCPU().
func NewPool(workerCount int, q Queue, writer Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	// The pool logs through the same logger its workers were given.
	base := &InMemoryWorker{}
	for _, opt := range opts {
		opt(base)
	}
	if base.logger == nil {
		base.logger = logger.Get()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  base.logger.Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, writer, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to deliver what is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("workerID", i))
			timedOut = true
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool: %w", shutdownCtx.Err())
	}
	return nil
}
