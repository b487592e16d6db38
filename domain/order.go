// Package domain defines core business types and interfaces.
package domain

// OrderLine is a request to allocate Qty units of SKU for an order.
// It is a comparable value: two lines with the same fields are the same line.
type OrderLine struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// Order groups the lines placed under one order reference.
type Order struct {
	Reference string      `json:"reference"`
	Lines     []OrderLine `json:"lines"`
}

// NewOrder constructs an Order with the given lines.
func NewOrder(ref string, lines ...OrderLine) *Order {
	return &Order{Reference: ref, Lines: append([]OrderLine(nil), lines...)}
}

// AddLine appends a line to the order.
func (o *Order) AddLine(line OrderLine) {
	o.Lines = append(o.Lines, line)
}
