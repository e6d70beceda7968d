// Package repository is the persistence collaborator: a document store whose
// collections are pushed to subscribers as ordered snapshots.
package repository

import (
	"context"

	"github.com/vibeteen/mural/internal/adapters/codec"
	"github.com/vibeteen/mural/internal/domain/model"
)

// Store provides read/write access to the shared collections.
type Store interface {
	// Append stores rec in col and returns its id. An empty id gets a fresh one.
	// Appending an id that already exists leaves the stored document as it is
	// and returns the id with ErrExists.
	Append(ctx context.Context, col model.Collection, rec model.Record) (string, error)

	// UpdateFields merges fields into an existing document. Values of type
	// model.SetOp are applied as set union or difference on list fields.
	// Returns ErrNotFound if the document does not exist.
	UpdateFields(ctx context.Context, col model.Collection, id string, fields codec.Document) error

	// Get returns a single record. Returns ErrNotFound if absent.
	Get(ctx context.Context, col model.Collection, id string) (model.Record, error)

	// Subscribe delivers the current snapshot of col and then one snapshot per
	// change. Slow readers only see the latest. The channel closes when ctx
	// ends or the store closes.
	Subscribe(ctx context.Context, col model.Collection, order model.Ordering) (<-chan model.Snapshot, error)

	// Count returns the number of valid records held in col.
	Count(ctx context.Context, col model.Collection) int

	// Close releases the store and ends every subscription.
	Close() error
}
