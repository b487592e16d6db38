package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"allocation/domain"

	"github.com/cockroachdb/pebble"
)

const batchKeyPrefix = "batch/"

// PebbleStore implements domain.BatchStore on PebbleDB. Decoded batches are
// kept in an identity map so repeated reads return the same *domain.Batch.
type PebbleStore struct {
	db *pebble.DB

	mu     sync.RWMutex
	loaded map[string]*domain.Batch
}

// compile-time assertion
var _ domain.BatchStore = (*PebbleStore)(nil)

// NewPebbleStore opens (or creates) a Pebble database in dir.
func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d, loaded: make(map[string]*domain.Batch)}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func batchKey(ref string) []byte { return []byte(batchKeyPrefix + ref) }

func (p *PebbleStore) write(b *domain.Batch) error {
	val, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := p.db.Set(batchKey(b.Reference), val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", b.Reference, err)
	}
	return nil
}

// lookup returns the live batch for ref, decoding it from disk on first use.
// Callers hold p.mu for writing.
func (p *PebbleStore) lookup(ref string) (*domain.Batch, error) {
	if b, ok := p.loaded[ref]; ok {
		return b, nil
	}
	v, closer, err := p.db.Get(batchKey(ref))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, domain.NewBatchNotFoundError(ref)
		}
		return nil, fmt.Errorf("pebble get %s: %w", ref, err)
	}
	defer closer.Close()
	b := new(domain.Batch)
	if err := json.Unmarshal(v, b); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", ref, err)
	}
	p.loaded[ref] = b
	return b, nil
}

func (p *PebbleStore) Add(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.lookup(batch.Key())
	switch {
	case err == nil:
		return domain.NewDuplicateBatchError(batch.Reference)
	case !domain.IsBatchNotFoundError(err):
		return err
	}
	if err := p.write(batch); err != nil {
		return err
	}
	p.loaded[batch.Key()] = batch
	return nil
}

func (p *PebbleStore) Get(ctx context.Context, ref string) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(ref)
}

func (p *PebbleStore) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(batchKeyPrefix),
		UpperBound: []byte("batch0"), // '0' follows '/'
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []*domain.Batch
	for it.First(); it.Valid(); it.Next() {
		ref := string(it.Key()[len(batchKeyPrefix):])
		b, ok := p.loaded[ref]
		if !ok {
			b = new(domain.Batch)
			if err := json.Unmarshal(it.Value(), b); err != nil {
				return nil, fmt.Errorf("decode batch %s: %w", ref, err)
			}
			p.loaded[ref] = b
		}
		if filter.SKU != "" && b.SKU != filter.SKU {
			continue
		}
		out = append(out, b)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	// keys iterate in byte order, which is reference order
	return out, nil
}

func (p *PebbleStore) Update(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.lookup(batch.Key()); err != nil {
		return err
	}
	if err := p.write(batch); err != nil {
		return err
	}
	p.loaded[batch.Key()] = batch
	return nil
}

func (p *PebbleStore) BulkImport(ctx context.Context, batches []*domain.Batch) error {
	return bulkImport(ctx, batches, p.Add)
}
