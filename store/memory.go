// Package store provides storage implementations for the allocation system.
package store

import (
	"context"
	"sync"

	"allocation/domain"
)

// InMemoryStore is a thread-safe in-memory domain.BatchStore. It holds the
// batch pointers it was given, so allocations made on a returned batch are
// seen by later reads.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*domain.Batch
}

// NewInMemoryStore constructs a new InMemoryStore, optionally seeded with batches.
func NewInMemoryStore(seed ...*domain.Batch) *InMemoryStore {
	s := &InMemoryStore{
		batches: make(map[string]*domain.Batch, len(seed)),
	}
	for _, b := range seed {
		s.batches[b.Key()] = b
	}
	return s
}

// compile-time assertion that InMemoryStore implements domain.BatchStore
var _ domain.BatchStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Add(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.Key()]; exists {
		return domain.NewDuplicateBatchError(batch.Reference)
	}
	s.batches[batch.Key()] = batch
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, ref string) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[ref]
	if !ok {
		return nil, domain.NewBatchNotFoundError(ref)
	}
	return b, nil
}

func (s *InMemoryStore) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterBatches(s.batches, filter), nil
}

func (s *InMemoryStore) Update(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.Key()]; !ok {
		return domain.NewBatchNotFoundError(batch.Reference)
	}
	s.batches[batch.Key()] = batch
	return nil
}

func (s *InMemoryStore) BulkImport(ctx context.Context, batches []*domain.Batch) error {
	return bulkImport(ctx, batches, s.Add)
}
