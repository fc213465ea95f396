package domain

import "time"

// LineItem is the atomic unit of picking: one SKU-quantity requirement within
// an order, scoped to the location it is picked from. Line items are only
// mutated through the session store's operations.
type LineItem struct {
	ID              string
	SKU             string
	ProductName     string
	Barcode         string
	ImageURL        string
	LineNumber      int
	Required        int
	Picked          int
	Status          ItemStatus
	Oversized       bool
	OversizedAt     string // alternate pick location for oversized stock
	OrderID         string
	OrderNumber     string
	CustomerName    string
	LocationCode    string
}

// Complete reports whether no further picking is needed for this item.
// An exception status counts as complete regardless of quantity.
func (li LineItem) Complete() bool {
	return li.Picked >= li.Required || li.Status.IsException()
}

// Remaining returns the quantity still to pick, never negative
func (li LineItem) Remaining() int {
	if r := li.Required - li.Picked; r > 0 {
		return r
	}
	return 0
}

// Order is a customer order's slice of work at one location. The same order
// identifier reappears at every location holding one of its SKUs, so
// completion is always computed from the items in context, never cached.
type Order struct {
	ID          string
	Number      string
	Customer    string
	ToteNumber  string
	ToteBarcode string
	Items       []LineItem
}

// Complete reports whether every item in this order context is complete
func (o Order) Complete() bool {
	for _, item := range o.Items {
		if !item.Complete() {
			return false
		}
	}
	return true
}

// HasIssues reports whether any item is missing or short. Oversized items are
// complete for routing purposes; none-remaining and short-picked items flag
// the order for exception handling.
func (o Order) HasIssues() bool {
	for _, item := range o.Items {
		if item.Status == ItemStatusNoneRemaining {
			return true
		}
		if item.Picked < item.Required && item.Status != ItemStatusOversized {
			return true
		}
	}
	return false
}

// Location is one traversal unit: a (SKU, physical location) pair with the
// orders that need that SKU there.
type Location struct {
	SKU           string
	Code          string
	ProductName   string
	Barcode       string
	ImageURL      string
	TotalQuantity int
	Orders        []Order
}

// Complete reports whether every order at this location is complete
func (l Location) Complete() bool {
	for _, order := range l.Orders {
		if !order.Complete() {
			return false
		}
	}
	return true
}

// ToteRecord is a backend-provided order to tote assignment
type ToteRecord struct {
	OrderID     string `json:"orderId"`
	ToteBarcode string `json:"toteBarcode"`
}

// BatchSummary is a batch list entry
type BatchSummary struct {
	ID         string      `json:"id"`
	Number     string      `json:"batchNumber"`
	Status     BatchStatus `json:"status"`
	Priority   string      `json:"priority"`
	OrderCount int         `json:"orderCount"`
	ItemCount  int         `json:"itemCount"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// BatchDetail is the full batch payload used to build a picking session
type BatchDetail struct {
	ID             string         `json:"id"`
	Number         string         `json:"batchNumber"`
	Status         BatchStatus    `json:"status"`
	Priority       string         `json:"priority"`
	LocationGroups LocationGroups `json:"locationGroups"`
	Totes          []ToteRecord   `json:"totes"`
}

// ItemState is the authoritative post-mutation state of a line item as
// reported by the backend after a pick or exception confirmation.
type ItemState struct {
	Picked int
	Status ItemStatus
}
