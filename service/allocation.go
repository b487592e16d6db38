// Package service runs allocations against a batch store. It is the layer
// that serializes work per SKU; the domain package itself does no locking.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"allocation/domain"
	"allocation/metrics"
)

// Allocation records which batch an order line went to.
type Allocation struct {
	Line     domain.OrderLine `json:"line"`
	BatchRef string           `json:"batch_ref"`
}

// AllocationService allocates order lines to batches held in a domain.BatchStore.
type AllocationService struct {
	store   domain.BatchStore
	metrics *metrics.Registry
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs an AllocationService. A nil registry or logger is replaced
// by a fresh registry and slog.Default().
func New(store domain.BatchStore, reg *metrics.Registry, logger *slog.Logger) *AllocationService {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AllocationService{
		store:   store,
		metrics: reg,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Metrics returns the registry the service records into.
func (s *AllocationService) Metrics() *metrics.Registry { return s.metrics }

// lockSKU blocks until the caller holds the lock for sku and returns the
// matching unlock func.
func (s *AllocationService) lockSKU(sku string) func() {
	s.mu.Lock()
	l, ok := s.locks[sku]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sku] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// AddBatch creates a batch and adds it to the store. The returned batch is a
// snapshot taken before the batch became visible to allocations.
func (s *AllocationService) AddBatch(ctx context.Context, ref, sku string, qty int, eta *time.Time) (*domain.Batch, error) {
	b := domain.NewBatch(ref, sku, qty, eta)
	snapshot := b.Clone()
	if err := s.store.Add(ctx, b); err != nil {
		s.logger.Error("add batch failed", "batch_ref", ref, "error", err)
		return nil, err
	}
	s.metrics.BatchesAdded.Inc()
	s.logger.Info("batch added", "batch_ref", ref, "sku", sku, "qty", qty)
	return snapshot, nil
}

// ImportBatches adds batches to the store in bulk. Batches that fail
// validation or collide with an existing reference are reported in the
// joined error; the rest are imported.
func (s *AllocationService) ImportBatches(ctx context.Context, batches []*domain.Batch) error {
	importErr := s.store.BulkImport(ctx, batches)

	imported := 0
	for _, b := range batches {
		if b == nil {
			continue
		}
		// the store keeps the pointer it accepted
		if got, err := s.store.Get(ctx, b.Reference); err == nil && got == b {
			imported++
		}
	}
	s.metrics.BatchesAdded.Add(float64(imported))

	if importErr != nil {
		s.logger.Error("import batches failed", "total", len(batches), "imported", imported, "error", importErr)
		return importErr
	}
	s.logger.Info("batches imported", "imported", imported)
	return nil
}

// GetBatch returns a snapshot of the batch with the given reference.
func (s *AllocationService) GetBatch(ctx context.Context, ref string) (*domain.Batch, error) {
	b, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.snapshot(b), nil
}

// ListBatches returns snapshots of the stored batches, restricted to sku when
// it is set.
func (s *AllocationService) ListBatches(ctx context.Context, sku string) ([]*domain.Batch, error) {
	batches, err := s.store.List(ctx, domain.ListFilter{SKU: sku})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Batch, len(batches))
	for i, b := range batches {
		out[i] = s.snapshot(b)
	}
	return out, nil
}

// snapshot copies b under its SKU lock. Stored batches are only mutated under
// that lock, so callers may read the copy freely.
func (s *AllocationService) snapshot(b *domain.Batch) *domain.Batch {
	unlock := s.lockSKU(b.SKU)
	defer unlock()
	return b.Clone()
}

// Allocate allocates line to the preferred batch for its SKU and returns the
// batch reference. A line that is already allocated returns its current batch
// unchanged. It fails with *domain.OutOfStockError when no batch can take it.
func (s *AllocationService) Allocate(ctx context.Context, line domain.OrderLine) (string, error) {
	ref, _, err := s.allocate(ctx, line)
	return ref, err
}

func (s *AllocationService) allocate(ctx context.Context, line domain.OrderLine) (ref string, fresh bool, err error) {
	unlock := s.lockSKU(line.SKU)
	defer unlock()

	start := time.Now()
	defer func() { s.metrics.LatencySec.Observe(time.Since(start).Seconds()) }()

	batches, err := s.store.List(ctx, domain.ListFilter{SKU: line.SKU})
	if err != nil {
		return "", false, fmt.Errorf("list batches: %w", err)
	}
	for _, b := range batches {
		if b.IsAllocated(line) {
			return b.Reference, false, nil
		}
	}

	ref, err = domain.Allocate(line, batches)
	if err != nil {
		s.metrics.OutOfStock.WithLabelValues(line.SKU).Inc()
		s.logger.Warn("out of stock", "sku", line.SKU, "order_id", line.OrderID, "qty", line.Qty)
		return "", false, err
	}

	var chosen *domain.Batch
	for _, b := range batches {
		if b.Reference == ref {
			chosen = b
			break
		}
	}
	if err := s.store.Update(ctx, chosen); err != nil {
		chosen.Deallocate(line)
		return "", false, fmt.Errorf("save batch %s: %w", ref, err)
	}

	s.metrics.Allocations.WithLabelValues(line.SKU).Inc()
	s.logger.Info("allocated",
		"sku", line.SKU,
		"order_id", line.OrderID,
		"qty", line.Qty,
		"batch_ref", ref,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ref, true, nil
}

// AllocateOrder allocates every line of order in sequence. If a line cannot
// be allocated, lines allocated by this call are released again and the
// error is returned.
func (s *AllocationService) AllocateOrder(ctx context.Context, order *domain.Order) ([]Allocation, error) {
	out := make([]Allocation, 0, len(order.Lines))
	var fresh []Allocation
	for _, line := range order.Lines {
		ref, isNew, err := s.allocate(ctx, line)
		if err != nil {
			for _, a := range fresh {
				if derr := s.Deallocate(ctx, a.BatchRef, a.Line); derr != nil {
					s.logger.Error("rollback failed", "order_ref", order.Reference, "batch_ref", a.BatchRef, "error", derr)
				}
			}
			return nil, fmt.Errorf("order %s: %w", order.Reference, err)
		}
		a := Allocation{Line: line, BatchRef: ref}
		out = append(out, a)
		if isNew {
			fresh = append(fresh, a)
		}
	}
	return out, nil
}

// Deallocate removes line from the batch with reference batchRef. A line that
// is not allocated there is ignored.
func (s *AllocationService) Deallocate(ctx context.Context, batchRef string, line domain.OrderLine) error {
	b, err := s.store.Get(ctx, batchRef)
	if err != nil {
		return err
	}
	unlock := s.lockSKU(b.SKU)
	defer unlock()

	if !b.IsAllocated(line) {
		return nil
	}
	b.Deallocate(line)
	if err := s.store.Update(ctx, b); err != nil {
		b.Allocate(line)
		return fmt.Errorf("save batch %s: %w", batchRef, err)
	}
	s.metrics.Deallocation.Inc()
	s.logger.Info("deallocated", "batch_ref", batchRef, "order_id", line.OrderID, "sku", line.SKU)
	return nil
}
