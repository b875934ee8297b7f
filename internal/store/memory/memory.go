// Package memory implements an in-process Context Store backed by a map,
// used by the test suite and by single-shot, no-persistence CLI runs.
package memory

import (
	"context"
	"sync"

	"go.fluxrun.dev/flux/internal/event"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
)

type row struct {
	mu  sync.Mutex
	ctx *event.Context
}

// Store is a map-backed Store. Safe for concurrent use; each execution_id
// is serialized behind its own mutex, matching the Context Store's
// serializability requirement without taking a single global lock.
type Store struct {
	mu   sync.Mutex
	rows map[string]*row
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{rows: make(map[string]*row)}
}

func (s *Store) rowFor(executionID string) *row {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[executionID]
	if !ok {
		r = &row{}
		s.rows[executionID] = r
	}
	return r
}

// Save upserts ec, deduplicating events on (source_id, type).
func (s *Store) Save(_ context.Context, ec *event.Context) error {
	r := s.rowFor(ec.ExecutionID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		stored := *ec
		stored.Events = append([]event.Event(nil), ec.Events...)
		r.ctx = &stored
		return nil
	}

	existing := make(map[[2]string]bool, len(r.ctx.Events))
	for _, e := range r.ctx.Events {
		existing[[2]string{e.SourceID, string(e.Type)}] = true
	}
	for _, e := range ec.Events {
		key := [2]string{e.SourceID, string(e.Type)}
		if existing[key] {
			continue
		}
		r.ctx.Events = append(r.ctx.Events, e)
		existing[key] = true
	}
	r.ctx.Input = ec.Input
	return nil
}

// Get returns the stored context for executionID.
func (s *Store) Get(_ context.Context, executionID string) (*event.Context, error) {
	s.mu.Lock()
	r, ok := s.rows[executionID]
	s.mu.Unlock()
	if !ok {
		return nil, &fluxerrors.ExecutionContextNotFoundError{ExecutionID: executionID}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return nil, &fluxerrors.ExecutionContextNotFoundError{ExecutionID: executionID}
	}

	cp := *r.ctx
	cp.Events = append([]event.Event(nil), r.ctx.Events...)
	return &cp, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
