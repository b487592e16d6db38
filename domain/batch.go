package domain

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

// DateLayout is the wire format of a batch ETA.
const DateLayout = "2006-01-02"

// Batch is a quantity of stock for one SKU, either in the warehouse (no ETA)
// or an incoming shipment. Batches are identified by Reference alone.
type Batch struct {
	Reference string
	SKU       string
	ETA       *time.Time

	purchasedQuantity int
	allocations       map[OrderLine]struct{}
}

// NewBatch constructs a Batch with no allocations. A nil eta marks stock that
// is already in the warehouse.
func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		SKU:               sku,
		ETA:               eta,
		purchasedQuantity: qty,
		allocations:       make(map[OrderLine]struct{}),
	}
}

// PurchasedQuantity returns the quantity the batch was created with.
func (b *Batch) PurchasedQuantity() int { return b.purchasedQuantity }

// InStock reports whether the batch is already in the warehouse.
func (b *Batch) InStock() bool { return b.ETA == nil }

// AllocatedQuantity is the sum of Qty over all allocated lines.
func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

// AvailableQuantity is the purchased quantity less the allocated quantity.
func (b *Batch) AvailableQuantity() int {
	return b.purchasedQuantity - b.AllocatedQuantity()
}

// CanAllocate reports whether line matches the batch SKU and fits in the
// remaining quantity. The boundary is inclusive.
func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.AvailableQuantity() >= line.Qty && b.SKU == line.SKU
}

// Allocate adds line to the batch if CanAllocate holds. Allocating a line that
// is already present, or one that does not fit, leaves the batch unchanged.
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) {
		return
	}
	if b.allocations == nil {
		b.allocations = make(map[OrderLine]struct{})
	}
	b.allocations[line] = struct{}{}
}

// Deallocate removes line from the batch. Unknown lines are ignored.
func (b *Batch) Deallocate(line OrderLine) {
	delete(b.allocations, line)
}

// IsAllocated reports whether line is currently allocated to the batch.
func (b *Batch) IsAllocated(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// Allocations returns the allocated lines ordered by order id, sku and qty.
func (b *Batch) Allocations() []OrderLine {
	out := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		out = append(out, line)
	}
	slices.SortFunc(out, compareLines)
	return out
}

// Clone returns a copy of the batch that shares no state with b.
func (b *Batch) Clone() *Batch {
	c := &Batch{
		Reference:         b.Reference,
		SKU:               b.SKU,
		purchasedQuantity: b.purchasedQuantity,
		allocations:       make(map[OrderLine]struct{}, len(b.allocations)),
	}
	if b.ETA != nil {
		eta := *b.ETA
		c.ETA = &eta
	}
	for line := range b.allocations {
		c.allocations[line] = struct{}{}
	}
	return c
}

// Key returns the identity of the batch for use in maps and sets.
func (b *Batch) Key() string { return b.Reference }

// Equal reports whether b and other are the same batch, by reference.
func (b *Batch) Equal(other *Batch) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Reference == other.Reference
}

// Less reports whether b is preferred over other for allocation.
func (b *Batch) Less(other *Batch) bool {
	return CompareBatches(b, other) < 0
}

func compareLines(a, b OrderLine) int {
	return cmp.Or(
		cmp.Compare(a.OrderID, b.OrderID),
		cmp.Compare(a.SKU, b.SKU),
		cmp.Compare(a.Qty, b.Qty),
	)
}

// batchRecord is the serialized form of a Batch.
type batchRecord struct {
	Reference         string      `json:"reference"`
	SKU               string      `json:"sku"`
	PurchasedQuantity int         `json:"purchased_quantity"`
	ETA               string      `json:"eta,omitempty"`
	Allocations       []OrderLine `json:"allocations,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Batch) MarshalJSON() ([]byte, error) {
	rec := batchRecord{
		Reference:         b.Reference,
		SKU:               b.SKU,
		PurchasedQuantity: b.purchasedQuantity,
		Allocations:       b.Allocations(),
	}
	if b.ETA != nil {
		rec.ETA = b.ETA.Format(DateLayout)
	}
	return json.Marshal(rec)
}

// UnmarshalJSON implements json.Unmarshaler. Allocations are restored as
// recorded, without re-checking capacity.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var rec batchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	eta, err := ParseETA(rec.ETA)
	if err != nil {
		return err
	}
	*b = *NewBatch(rec.Reference, rec.SKU, rec.PurchasedQuantity, eta)
	for _, line := range rec.Allocations {
		b.allocations[line] = struct{}{}
	}
	return nil
}

// ParseETA parses a DateLayout date. The empty string yields a nil ETA.
func ParseETA(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, NewInvalidBatchError("eta", "must be YYYY-MM-DD", s)
	}
	return &t, nil
}

// ValidateBatch checks the fields a store requires before accepting a batch.
func ValidateBatch(b *Batch) error {
	if b == nil {
		return NewInvalidBatchError("batch", "cannot be nil", nil)
	}
	if b.Reference == "" {
		return NewInvalidBatchError("reference", "cannot be empty", b.Reference)
	}
	if b.SKU == "" {
		return NewInvalidBatchError("sku", "cannot be empty", b.SKU)
	}
	if b.purchasedQuantity < 0 {
		return NewInvalidBatchError("purchased_quantity", "must be non-negative", b.purchasedQuantity)
	}
	for line := range b.allocations {
		if line.SKU != b.SKU {
			return NewInvalidBatchError("allocations", "sku does not match batch", line.SKU)
		}
		if line.Qty <= 0 {
			return NewInvalidBatchError("allocations", "qty must be positive", line.Qty)
		}
	}
	if b.AvailableQuantity() < 0 {
		return NewInvalidBatchError("allocations", "exceed purchased quantity", b.AllocatedQuantity())
	}
	return nil
}
