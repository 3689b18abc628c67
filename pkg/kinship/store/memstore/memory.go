package memstore

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	queries []store.QueryRecord
	index   map[string]int
	facts   []store.FactRecord
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// RecordQuery appends r.
func (s *Store) RecordQuery(ctx context.Context, r store.QueryRecord) error {
	if r.ID == "" {
		return internalerr.Invalid("query record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[r.ID]; ok {
		return internalerr.Invalid("duplicate query record %s", r.ID)
	}
	s.index[r.ID] = len(s.queries)
	s.queries = append(s.queries, copyQuery(r))
	return nil
}

// GetQuery returns the record with id.
func (s *Store) GetQuery(ctx context.Context, id string) (store.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return store.QueryRecord{}, errors.Wrapf(internalerr.ErrNotFound, "query %s", id)
	}
	return copyQuery(s.queries[i]), nil
}

// RecentQueries returns up to limit records, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]store.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = store.Limit(limit)
	out := make([]store.QueryRecord, 0, min(limit, len(s.queries)))
	for i := len(s.queries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyQuery(s.queries[i]))
	}
	return out, nil
}

// RecordFact appends r.
func (s *Store) RecordFact(ctx context.Context, r store.FactRecord) error {
	if r.ID == "" {
		return internalerr.Invalid("fact record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, r)
	return nil
}

// RecentFacts returns up to limit records, newest first.
func (s *Store) RecentFacts(ctx context.Context, limit int) ([]store.FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = store.Limit(limit)
	out := make([]store.FactRecord, 0, min(limit, len(s.facts)))
	for i := len(s.facts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.facts[i])
	}
	return out, nil
}

func copyQuery(r store.QueryRecord) store.QueryRecord {
	r.Args = append([]string(nil), r.Args...)
	if r.Raw != nil {
		raw := make([][]string, len(r.Raw))
		for i, row := range r.Raw {
			raw[i] = append([]string{}, row...)
		}
		r.Raw = raw
	}
	r.Normalized = append([]byte(nil), r.Normalized...)
	return r
}
