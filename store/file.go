package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"allocation/domain"
)

// FileStore is a JSON file-backed implementation of domain.BatchStore.
// The whole file is loaded at construction and rewritten on every change.
// The file is assembled from the last encoding of each batch, so a write only
// reads the batch being written.
type FileStore struct {
	mu      sync.RWMutex
	batches map[string]*domain.Batch
	encoded map[string]json.RawMessage
	path    string
}

// compile-time assertion
var _ domain.BatchStore = (*FileStore)(nil)

// NewFileStore constructs a FileStore at the given path. If the file exists it will be loaded.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		batches: make(map[string]*domain.Batch),
		encoded: make(map[string]json.RawMessage),
		path:    path,
	}
	if err := s.loadFromFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadFromFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	for _, raw := range list {
		batch := new(domain.Batch)
		if err := json.Unmarshal(raw, batch); err != nil {
			return err
		}
		if err := domain.ValidateBatch(batch); err != nil {
			return fmt.Errorf("load %s: %w", s.path, err)
		}
		s.batches[batch.Key()] = batch
		s.encoded[batch.Key()] = slices.Clone(raw)
	}
	return nil
}

func encodeBatch(b *domain.Batch) (json.RawMessage, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch %s: %w", b.Reference, err)
	}
	return raw, nil
}

func (s *FileStore) saveToFile() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	refs := make([]string, 0, len(s.encoded))
	for ref := range s.encoded {
		refs = append(refs, ref)
	}
	// stable order for deterministic files
	slices.Sort(refs)
	list := make([]json.RawMessage, 0, len(refs))
	for _, ref := range refs {
		list = append(list, s.encoded[ref])
	}
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Add(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}
	raw, err := encodeBatch(batch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.Key()]; ok {
		return domain.NewDuplicateBatchError(batch.Reference)
	}
	s.batches[batch.Key()] = batch
	s.encoded[batch.Key()] = raw
	return s.saveToFile()
}

func (s *FileStore) Get(ctx context.Context, ref string) (*domain.Batch, error) {
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

func (s *FileStore) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterBatches(s.batches, filter), nil
}

func (s *FileStore) Update(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateBatch(batch); err != nil {
		return err
	}
	raw, err := encodeBatch(batch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.Key()]; !ok {
		return domain.NewBatchNotFoundError(batch.Reference)
	}
	s.batches[batch.Key()] = batch
	s.encoded[batch.Key()] = raw
	return s.saveToFile()
}

// BulkImport validates batches concurrently, then merges the valid ones and
// writes the file once.
func (s *FileStore) BulkImport(ctx context.Context, batches []*domain.Batch) error {
	type stagedBatch struct {
		batch *domain.Batch
		raw   json.RawMessage
	}
	var stageMu sync.Mutex
	staged := make(map[string]stagedBatch, len(batches))

	collected := bulkImport(ctx, batches, func(ctx context.Context, b *domain.Batch) error {
		if err := domain.ValidateBatch(b); err != nil {
			return err
		}
		raw, err := encodeBatch(b)
		if err != nil {
			return err
		}
		stageMu.Lock()
		defer stageMu.Unlock()
		if _, exists := staged[b.Key()]; exists {
			return domain.NewDuplicateBatchError(b.Reference)
		}
		staged[b.Key()] = stagedBatch{batch: b, raw: raw}
		return nil
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(staged) == 0 {
		return collected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	errs := []error{collected}
	for ref, sb := range staged {
		if _, exists := s.batches[ref]; exists {
			errs = append(errs, domain.NewDuplicateBatchError(ref))
			continue
		}
		s.batches[ref] = sb.batch
		s.encoded[ref] = sb.raw
	}
	errs = append(errs, s.saveToFile())
	return errors.Join(errs...)
}
