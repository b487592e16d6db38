package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func makeBatchAndLine(sku string, batchQty, lineQty int) (*Batch, OrderLine) {
	return NewBatch("batch-001", sku, batchQty, &today),
		OrderLine{OrderID: "order-123", SKU: sku, Qty: lineQty}
}

func TestAllocatingToABatchReducesTheAvailableQuantity(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 20, 2)
	batch.Allocate(line)
	assert.Equal(t, 18, batch.AvailableQuantity())
	assert.Equal(t, 2, batch.AllocatedQuantity())
	assert.Equal(t, 20, batch.PurchasedQuantity())
}

func TestCanAllocate(t *testing.T) {
	tests := []struct {
		name     string
		batchQty int
		lineQty  int
		want     bool
	}{
		{"available greater than required", 200, 10, true},
		{"available smaller than required", 10, 200, false},
		{"available equal to required", 20, 20, true},
		{"one more than available", 20, 21, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, line := makeBatchAndLine("SMALL-TABLE", tt.batchQty, tt.lineQty)
			assert.Equal(t, tt.want, batch.CanAllocate(line))
		})
	}
}

func TestCanAllocateBoundaryAfterPartialAllocation(t *testing.T) {
	batch := NewBatch("batch-001", "DESK", 10, nil)
	batch.Allocate(OrderLine{OrderID: "o1", SKU: "DESK", Qty: 4})

	assert.True(t, batch.CanAllocate(OrderLine{OrderID: "o2", SKU: "DESK", Qty: 6}))
	assert.False(t, batch.CanAllocate(OrderLine{OrderID: "o2", SKU: "DESK", Qty: 7}))
}

func TestCannotAllocateIfSkusDoNotMatch(t *testing.T) {
	batch := NewBatch("ref123", "SMALL-TABLE", 1000, nil)
	line := OrderLine{OrderID: "order123", SKU: "LARGE-TABLE", Qty: 1}
	assert.False(t, batch.CanAllocate(line))

	batch.Allocate(line)
	assert.Equal(t, 1000, batch.AvailableQuantity())
}

func TestAllocateIsIdempotent(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 100, 10)
	batch.Allocate(line)
	batch.Allocate(OrderLine{OrderID: "order-123", SKU: "SMALL-TABLE", Qty: 10})
	assert.Equal(t, 90, batch.AvailableQuantity())
	assert.Len(t, batch.Allocations(), 1)
}

func TestAllocateIneligibleLineIsNoop(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 5, 6)
	batch.Allocate(line)
	assert.Equal(t, 5, batch.AvailableQuantity())
	assert.False(t, batch.IsAllocated(line))
}

func TestCanOnlyDeallocateAllocatedLines(t *testing.T) {
	batch, unallocated := makeBatchAndLine("SMALL-TABLE", 20, 2)
	batch.Deallocate(unallocated)
	assert.Equal(t, 20, batch.AvailableQuantity())
}

func TestDeallocateRestoresQuantity(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 20, 2)
	batch.Allocate(line)
	batch.Deallocate(line)
	assert.Equal(t, 20, batch.AvailableQuantity())
	assert.False(t, batch.IsAllocated(line))
}

func TestBatchIdentityIsReference(t *testing.T) {
	a := NewBatch("b1", "LAMP", 10, nil)
	b := NewBatch("b1", "CHAIR", 99, &today)
	c := NewBatch("b2", "LAMP", 10, nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Key(), b.Key())

	set := map[string]*Batch{a.Key(): a}
	set[b.Key()] = b
	assert.Len(t, set, 1)
}

func TestBatchJSONRoundTripKeepsAllocations(t *testing.T) {
	batch := NewBatch("b1", "LAMP", 10, &today)
	batch.Allocate(OrderLine{OrderID: "o2", SKU: "LAMP", Qty: 3})
	batch.Allocate(OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 1})

	b, err := json.Marshal(batch)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"reference":"b1","sku":"LAMP","purchased_quantity":10,"eta":"2026-10-19",
		"allocations":[{"order_id":"o1","sku":"LAMP","qty":1},{"order_id":"o2","sku":"LAMP","qty":3}]
	}`, string(b))

	var got Batch
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 6, got.AvailableQuantity())
	require.NotNil(t, got.ETA)
	assert.True(t, got.ETA.Equal(today))
}

func TestBatchJSONInStockOmitsETA(t *testing.T) {
	b, err := json.Marshal(NewBatch("b1", "LAMP", 10, nil))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "eta")
}

func TestParseETA(t *testing.T) {
	eta, err := ParseETA("")
	require.NoError(t, err)
	assert.Nil(t, eta)

	eta, err = ParseETA("2026-12-01")
	require.NoError(t, err)
	assert.Equal(t, time.December, eta.Month())

	_, err = ParseETA("tomorrow")
	assert.True(t, IsInvalidBatchError(err))
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name     string
		batch    *Batch
		errField string
	}{
		{"valid", NewBatch("b1", "LAMP", 0, nil), ""},
		{"nil batch", nil, "batch"},
		{"empty reference", NewBatch("", "LAMP", 1, nil), "reference"},
		{"empty sku", NewBatch("b1", "", 1, nil), "sku"},
		{"negative quantity", NewBatch("b1", "LAMP", -1, nil), "purchased_quantity"},
		{"over allocated", decodeBatch(t, `{"reference":"b1","sku":"LAMP","purchased_quantity":1,
			"allocations":[{"order_id":"o1","sku":"LAMP","qty":2}]}`), "allocations"},
		{"allocation for another sku", decodeBatch(t, `{"reference":"b1","sku":"LAMP","purchased_quantity":5,
			"allocations":[{"order_id":"o1","sku":"DESK","qty":1}]}`), "allocations"},
		{"non-positive allocation", decodeBatch(t, `{"reference":"b1","sku":"LAMP","purchased_quantity":5,
			"allocations":[{"order_id":"o1","sku":"LAMP","qty":0}]}`), "allocations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.batch)
			if tt.errField == "" {
				assert.NoError(t, err)
				return
			}
			var ibe *InvalidBatchError
			require.ErrorAs(t, err, &ibe)
			assert.Equal(t, tt.errField, ibe.Field)
		})
	}
}

func decodeBatch(t *testing.T, raw string) *Batch {
	t.Helper()
	var b Batch
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return &b
}

func TestCloneSharesNoState(t *testing.T) {
	batch, line := makeBatchAndLine("LAMP", 10, 2)
	batch.Allocate(line)

	c := batch.Clone()
	assert.True(t, c.Equal(batch))
	assert.Equal(t, batch.Allocations(), c.Allocations())
	require.NotNil(t, c.ETA)
	assert.NotSame(t, batch.ETA, c.ETA)

	c.Allocate(OrderLine{OrderID: "order-456", SKU: "LAMP", Qty: 3})
	batch.Deallocate(line)
	assert.Equal(t, 10, batch.AvailableQuantity())
	assert.Equal(t, 5, c.AvailableQuantity())
}

func TestOrderAddLine(t *testing.T) {
	order := NewOrder("order-1", OrderLine{OrderID: "order-1", SKU: "LAMP", Qty: 1})
	order.AddLine(OrderLine{OrderID: "order-1", SKU: "DESK", Qty: 2})
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "DESK", order.Lines[1].SKU)
}
