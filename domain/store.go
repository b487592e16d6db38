package domain

import "context"

// ListFilter narrows the batches returned by List.
type ListFilter struct {
	SKU string
}

// BatchStore defines the storage interface for batches. Batches returned by
// Get and List are live: mutating one is visible to later reads through the
// same store. Update persists the mutated state.
type BatchStore interface {
	Add(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, ref string) (*Batch, error)
	List(ctx context.Context, filter ListFilter) ([]*Batch, error)
	Update(ctx context.Context, batch *Batch) error
	BulkImport(ctx context.Context, batches []*Batch) error
}
