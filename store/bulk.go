package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"allocation/domain"

	"golang.org/x/sync/errgroup"
)

const maxImportWorkers = 10

// bulkImport runs add for every batch with at most maxImportWorkers in
// flight. Per-batch failures are collected and joined; a cancelled context
// takes precedence over them.
func bulkImport(ctx context.Context, batches []*domain.Batch, add func(context.Context, *domain.Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(maxImportWorkers)
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := add(ctx, b); err != nil {
				ref := ""
				if b != nil {
					ref = b.Reference
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("ref=%s: %w", ref, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// filterBatches returns the batches matching filter, sorted by reference.
func filterBatches(all map[string]*domain.Batch, filter domain.ListFilter) []*domain.Batch {
	out := make([]*domain.Batch, 0, len(all))
	for _, b := range all {
		if filter.SKU != "" && b.SKU != filter.SKU {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *domain.Batch) int {
		return cmp.Compare(a.Reference, b.Reference)
	})
	return out
}
