package domain

import "slices"

// CompareBatches orders batches by allocation preference: batches without an
// ETA come first, then shipments by ascending ETA. It returns 0 for batches
// in the same position.
func CompareBatches(a, b *Batch) int {
	switch {
	case a.ETA == nil && b.ETA == nil:
		return 0
	case a.ETA == nil:
		return -1
	case b.ETA == nil:
		return 1
	}
	return a.ETA.Compare(*b.ETA)
}

// Allocate allocates line to the most preferred batch able to take it and
// returns that batch's reference. Candidates in the same preference position
// keep their input order. If no batch qualifies, no batch is changed and an
// OutOfStockError naming line.SKU is returned.
func Allocate(line OrderLine, batches []*Batch) (string, error) {
	sorted := slices.Clone(batches)
	slices.SortStableFunc(sorted, CompareBatches)
	for _, b := range sorted {
		if b.CanAllocate(line) {
			b.Allocate(line)
			return b.Reference, nil
		}
	}
	return "", NewOutOfStockError(line.SKU)
}
