package store

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"allocation/domain"
)

func TestAddValidation_TableDriven(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	cases := []struct {
		name    string
		batch   *domain.Batch
		wantErr bool
	}{
		{"nil batch", nil, true},
		{"empty ref", domain.NewBatch("", "LAMP", 1, nil), true},
		{"empty sku", domain.NewBatch("x1", "", 1, nil), true},
		{"negative quantity", domain.NewBatch("x2", "LAMP", -5, nil), true},
		{"valid", domain.NewBatch("x3", "LAMP", 0, nil), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Add(ctx, tc.batch)
			if tc.wantErr && !domain.IsInvalidBatchError(err) {
				t.Fatalf("expected InvalidBatchError for case %s, got %v", tc.name, err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetUpdate_NotFoundAndDuplicate(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	t.Run("get not found", func(t *testing.T) {
		_, err := s.Get(ctx, "no-such")
		if !domain.IsBatchNotFoundError(err) {
			t.Fatalf("expected BatchNotFoundError, got %v", err)
		}
	})

	t.Run("update not found", func(t *testing.T) {
		err := s.Update(ctx, domain.NewBatch("no-such", "LAMP", 1, nil))
		if !domain.IsBatchNotFoundError(err) {
			t.Fatalf("expected BatchNotFoundError, got %v", err)
		}
	})

	if err := s.Add(ctx, domain.NewBatch("b1", "LAMP", 5, nil)); err != nil {
		t.Fatalf("setup add failed: %v", err)
	}
	t.Run("add duplicate", func(t *testing.T) {
		err := s.Add(ctx, domain.NewBatch("b1", "DESK", 9, nil))
		if !domain.IsDuplicateBatchError(err) {
			t.Fatalf("expected DuplicateBatchError, got %v", err)
		}
	})
}

func TestInMemoryStore_MutationsVisibleThroughStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(domain.NewBatch("b1", "LAMP", 10, nil))

	list, err := s.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := domain.Allocate(domain.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 3}, list); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	got, err := s.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.AvailableQuantity() != 7 {
		t.Fatalf("expected 7 available, got %d", got.AvailableQuantity())
	}
}

func TestListFilterAndOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Add(ctx, domain.NewBatch("c", "LAMP", 1, nil))
	_ = s.Add(ctx, domain.NewBatch("a", "LAMP", 1, nil))
	_ = s.Add(ctx, domain.NewBatch("b", "DESK", 1, nil))

	t.Run("filter by sku", func(t *testing.T) {
		out, err := s.List(ctx, domain.ListFilter{SKU: "LAMP"})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(out) != 2 || out[0].Reference != "a" || out[1].Reference != "c" {
			t.Fatalf("unexpected result: %v", out)
		}
	})

	t.Run("all sorted by reference", func(t *testing.T) {
		out, _ := s.List(ctx, domain.ListFilter{})
		if len(out) != 3 || out[0].Reference != "a" || out[2].Reference != "c" {
			t.Fatalf("unexpected order: %v", out)
		}
	})
}

func TestBulkImport_ErrorsAndCancellation(t *testing.T) {
	s := NewInMemoryStore()

	batches := []*domain.Batch{
		domain.NewBatch("d1", "LAMP", 1, nil),
		domain.NewBatch("d1", "LAMP", 1, nil),
		domain.NewBatch("d2", "", 1, nil),
	}
	err := s.BulkImport(context.Background(), batches)
	if err == nil {
		t.Fatalf("expected error due to duplicate and invalid batches")
	}
	if !domain.IsDuplicateBatchError(err) || !domain.IsInvalidBatchError(err) {
		t.Fatalf("expected both duplicate and invalid errors, got %v", err)
	}
	if _, err := s.Get(context.Background(), "d1"); err != nil {
		t.Fatalf("expected d1 to be imported once: %v", err)
	}

	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.BulkImport(canceledCtx, []*domain.Batch{domain.NewBatch("x1", "LAMP", 1, nil)}); err == nil {
		t.Fatalf("expected context error on canceled context")
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup

	n := 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		ref := "b-conc-" + strconv.Itoa(i)
		go func(ref string) {
			defer wg.Done()
			_ = s.Add(ctx, domain.NewBatch(ref, "LAMP", 1, nil))
			_, _ = s.Get(ctx, ref)
		}(ref)
	}
	wg.Wait()

	out, err := s.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != n {
		t.Fatalf("expected %d batches, got %d", n, len(out))
	}
}

func BenchmarkInMemoryStore_Add(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := NewInMemoryStore()
		_ = s.Add(context.Background(), domain.NewBatch("b-add-"+strconv.Itoa(i), "LAMP", 1, nil))
	}
}
