package session

import (
	"strings"

	"github.com/wms-platform/picker-terminal/internal/domain"
)

// MatchKind classifies what a product scan resolved to
type MatchKind int

const (
	// MatchNone means the code matched nothing at the current location
	MatchNone MatchKind = iota
	// MatchActive means the code matched a pickable item in the active order
	MatchActive
	// MatchOtherOrder means the code matched an item that belongs to a
	// different order at this location: the picker is holding the wrong tote
	MatchOtherOrder
)

// Match is the result of resolving a scanned product code
type Match struct {
	Kind       MatchKind
	Item       domain.LineItem
	Order      domain.Order
	OrderIndex int
}

// MatchScan resolves a scanned code against the current location. The active
// order is searched first for an incomplete item whose barcode or SKU matches;
// failing that, the other orders are searched so the caller can raise a
// precise wrong-tote error instead of a generic unknown-barcode one.
// Comparison is trimmed and case-insensitive.
func (s *Store) MatchScan(code string, activeOrderIdx int) Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return Match{Kind: MatchNone}
	}

	scanned := strings.ToUpper(strings.TrimSpace(code))
	if scanned == "" {
		return Match{Kind: MatchNone}
	}

	loc := s.locations[s.index]

	if activeOrderIdx >= 0 && activeOrderIdx < len(loc.Orders) {
		order := loc.Orders[activeOrderIdx]
		for _, item := range order.Items {
			if item.Status.IsException() || item.Picked >= item.Required {
				continue
			}
			if itemMatches(item, scanned) {
				return Match{Kind: MatchActive, Item: item, Order: order, OrderIndex: activeOrderIdx}
			}
		}
	}

	for oi, order := range loc.Orders {
		if oi == activeOrderIdx {
			continue
		}
		for _, item := range order.Items {
			if item.Status.IsException() {
				continue
			}
			// A completed item still matches here: scanning it means the
			// picker is working the wrong order's tote.
			if itemMatches(item, scanned) {
				return Match{Kind: MatchOtherOrder, Item: item, Order: order, OrderIndex: oi}
			}
		}
	}

	return Match{Kind: MatchNone}
}

func itemMatches(item domain.LineItem, scanned string) bool {
	barcode := strings.ToUpper(strings.TrimSpace(item.Barcode))
	sku := strings.ToUpper(strings.TrimSpace(item.SKU))
	return (barcode != "" && scanned == barcode) || (sku != "" && scanned == sku)
}

// FirstIncompleteOrder returns the index of the first order at the current
// location that still needs picking, or 0 when every order is complete.
func (s *Store) FirstIncompleteOrder() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return 0
	}
	for i, order := range s.locations[s.index].Orders {
		if !order.Complete() {
			return i
		}
	}
	return 0
}

// NextIncompleteOrder scans strictly forward from the given order index for
// the next order with remaining work. Unlike location traversal this does not
// wrap: exhausting the orders means the location is done.
func (s *Store) NextIncompleteOrder(from int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return 0, false
	}
	orders := s.locations[s.index].Orders
	for i := from + 1; i < len(orders); i++ {
		if !orders[i].Complete() {
			return i, true
		}
	}
	return 0, false
}

// LocationComplete reports whether every order at the current location is done
func (s *Store) LocationComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locations) == 0 {
		return true
	}
	return s.locations[s.index].Complete()
}
