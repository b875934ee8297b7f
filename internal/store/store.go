// Package store implements the Context Store (spec §4.1): atomic
// persistence of ExecutionContexts and their append-only event lists.
package store

import (
	"context"

	"go.fluxrun.dev/flux/internal/event"
)

// Store is the Context Store contract. Save is an upsert: if the context
// does not exist it is inserted whole; if it exists, every event whose
// (source_id, type) pair is not already present is appended. Concurrent
// Save calls against the same execution_id must be serialized.
type Store interface {
	// Save upserts ctx, deduplicating events on (execution_id, source_id, type).
	Save(ctx context.Context, ec *event.Context) error
	// Get returns the stored context for executionID, or an
	// *errors.ExecutionContextNotFoundError if absent.
	Get(ctx context.Context, executionID string) (*event.Context, error)
	// Close releases any resources held by the store.
	Close() error
}
