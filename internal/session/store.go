package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
)

// Store errors
var (
	ErrNoBatch      = errors.New("no batch loaded")
	ErrItemNotFound = errors.New("line item not found at current location")
)

// OverPickError rejects an increment that would exceed the required quantity.
// Max carries the maximum quantity allowed for the item.
type OverPickError struct {
	Max int
}

func (e *OverPickError) Error() string {
	return fmt.Sprintf("cannot pick more than required (max %d)", e.Max)
}

// PickResult is the outcome of an accepted quantity increment
type PickResult struct {
	Item          domain.LineItem
	OrderComplete bool
}

// LineItemPatch is a partial overwrite of a line item, used by reconciliation
// and exception marking. Nil fields are left untouched.
type LineItemPatch struct {
	Picked    *int
	Status    *domain.ItemStatus
	Oversized *bool
}

// Store is the single source of truth for the in-progress batch: the location
// hierarchy, the traversal position, and the session's tote assignments.
//
// Every mutation is copy-on-write: the affected location, order, and item are
// replaced with fresh values rather than edited in place, so snapshots handed
// out earlier stay valid. Mutations are atomic under the store's lock; the
// picking flow itself is single-threaded, the lock exists so confirmation
// goroutines and the diagnostics server can touch the store safely.
type Store struct {
	mu sync.Mutex

	batchID     string
	batchNumber string
	status      domain.BatchStatus
	locations   []domain.Location
	index       int

	serverTotes  map[string]string // orderID -> tote barcode, from the batch payload
	sessionTotes map[string]string // orderID -> tote barcode, scanned this session

	logger *logging.Logger
}

// New creates an empty Store
func New(logger *logging.Logger) *Store {
	return &Store{
		serverTotes:  make(map[string]string),
		sessionTotes: make(map[string]string),
		logger:       logger.WithComponent("session"),
	}
}

// LoadBatch replaces all session state with a freshly built hierarchy and
// resets the traversal to the first location.
func (s *Store) LoadBatch(detail domain.BatchDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchID = detail.ID
	s.batchNumber = detail.Number
	s.status = detail.Status
	s.locations = domain.BuildLocations(detail.LocationGroups)
	s.index = 0
	s.serverTotes = toteMap(detail.Totes)
	s.sessionTotes = make(map[string]string)

	s.logger.Info("Batch loaded",
		"batchId", detail.ID,
		"locations", len(s.locations),
	)
}

// Clear resets all batch and tote-assignment state
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchID = ""
	s.batchNumber = ""
	s.status = ""
	s.locations = nil
	s.index = 0
	s.serverTotes = make(map[string]string)
	s.sessionTotes = make(map[string]string)
}

// BatchID returns the loaded batch identifier, empty when no batch is loaded
func (s *Store) BatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchID
}

// CurrentIndex returns the traversal position
func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// CurrentLocation returns the location the picker is working, if any
func (s *Store) CurrentLocation() (domain.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locations) == 0 {
		return domain.Location{}, false
	}
	return s.locations[s.index], true
}

// Locations returns a snapshot of the full traversal sequence
func (s *Store) Locations() []domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]domain.Location, len(s.locations))
	copy(snapshot, s.locations)
	return snapshot
}

// AdvanceLocation moves to the next location that still has incomplete items,
// scanning forward cyclically from the position after the current one. It
// returns false, leaving the index where it is, when every location is done —
// the caller's cue to offer batch completion. The wrap-around revisits skipped
// locations whose items became incomplete again; items never regress in
// practice, but the traversal does not assume monotonicity.
func (s *Store) AdvanceLocation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 1; i <= len(s.locations); i++ {
		next := (s.index + i) % len(s.locations)
		if !s.locations[next].Complete() {
			s.index = next
			s.logger.Debug("Advanced location", "index", next, "sku", s.locations[next].SKU)
			return true
		}
	}
	return false
}

// Item returns the line item with the given id from the current location
func (s *Store) Item(lineItemID string) (domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return domain.LineItem{}, ErrNoBatch
	}
	for _, order := range s.locations[s.index].Orders {
		for _, item := range order.Items {
			if item.ID == lineItemID {
				return item, nil
			}
		}
	}
	return domain.LineItem{}, ErrItemNotFound
}

// IncrementPicked raises an item's picked quantity by delta. Picking always
// targets the active location, so the lookup is scoped there. Incrementing an
// item already in a terminal status is an idempotent no-op. An increment that
// would exceed the required quantity is rejected with an OverPickError and no
// mutation. Otherwise the item is replaced with its new quantity and a status
// of picked or picking, and the result reports whether the owning order is
// now fully complete.
func (s *Store) IncrementPicked(lineItemID string, delta int) (PickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return PickResult{}, ErrNoBatch
	}

	loc := s.locations[s.index]
	for oi, order := range loc.Orders {
		for ii, item := range order.Items {
			if item.ID != lineItemID {
				continue
			}

			if item.Status.IsTerminal() || item.Picked >= item.Required {
				return PickResult{Item: item, OrderComplete: order.Complete()}, nil
			}

			if item.Picked+delta > item.Required {
				return PickResult{}, &OverPickError{Max: item.Required}
			}

			updated := item
			updated.Picked = item.Picked + delta
			if updated.Picked >= updated.Required {
				updated.Status = domain.ItemStatusPicked
			} else {
				updated.Status = domain.ItemStatusPicking
			}

			newOrder := s.replaceItem(oi, ii, updated)
			return PickResult{Item: updated, OrderComplete: newOrder.Complete()}, nil
		}
	}
	return PickResult{}, ErrItemNotFound
}

// UpdateLineItem overwrites fields of an item at the current location. Used
// by reconciliation to adopt backend truth or revert, and by exception
// marking; it does not enforce the pick state machine.
func (s *Store) UpdateLineItem(lineItemID string, patch LineItemPatch) (domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.locations) == 0 {
		return domain.LineItem{}, ErrNoBatch
	}

	loc := s.locations[s.index]
	for oi, order := range loc.Orders {
		for ii, item := range order.Items {
			if item.ID != lineItemID {
				continue
			}

			updated := item
			if patch.Picked != nil {
				updated.Picked = *patch.Picked
			}
			if patch.Status != nil {
				updated.Status = *patch.Status
			}
			if patch.Oversized != nil {
				updated.Oversized = *patch.Oversized
			}

			s.replaceItem(oi, ii, updated)
			return updated, nil
		}
	}
	return domain.LineItem{}, ErrItemNotFound
}

// RefreshFromServer rebuilds the hierarchy from fresh backend data and
// re-locates the previously current location by (SKU, location code), since
// list positions shift as items complete server-side. Falls back to the first
// location when no match survives. Tote assignments are independent of the
// location rebuild and are kept.
func (s *Store) RefreshFromServer(detail domain.BatchDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *domain.Location
	if len(s.locations) > 0 {
		p := s.locations[s.index]
		prev = &p
	}

	s.batchID = detail.ID
	s.batchNumber = detail.Number
	s.status = detail.Status
	s.locations = domain.BuildLocations(detail.LocationGroups)
	s.serverTotes = toteMap(detail.Totes)

	newIndex := 0
	if prev != nil {
		for i, loc := range s.locations {
			if loc.SKU == prev.SKU && loc.Code == prev.Code {
				newIndex = i
				break
			}
		}
	}
	if newIndex >= len(s.locations) {
		newIndex = len(s.locations) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}
	s.index = newIndex

	s.logger.Info("Batch refreshed",
		"batchId", detail.ID,
		"locations", len(s.locations),
		"index", s.index,
	)
}

// AssignTote records a session-local order to tote assignment. The last
// confirmed scan is authoritative: re-verifying an order with a different
// tote overwrites the earlier assignment.
func (s *Store) AssignTote(orderID, toteBarcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTotes[orderID] = toteBarcode
}

// ToteFor resolves the tote for an order. Session assignments take precedence
// over the batch payload's assignments, since they are fresh from this
// picker's own scans.
func (s *Store) ToteFor(orderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if barcode, ok := s.sessionTotes[orderID]; ok {
		return barcode, true
	}
	barcode, ok := s.serverTotes[orderID]
	return barcode, ok
}

// HasSessionTote reports whether the order's tote was verified this session
func (s *Store) HasSessionTote(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessionTotes[orderID]
	return ok
}

// ToteAssignments returns the merged order to tote map, session scans winning
func (s *Store) ToteAssignments() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]string, len(s.serverTotes)+len(s.sessionTotes))
	for orderID, barcode := range s.serverTotes {
		merged[orderID] = barcode
	}
	for orderID, barcode := range s.sessionTotes {
		merged[orderID] = barcode
	}
	return merged
}

// replaceItem installs a new item value, rebuilding the order, the location,
// and the locations slice around it. Must be called with the lock held.
// Returns the rebuilt order so callers can inspect completion.
func (s *Store) replaceItem(orderIdx, itemIdx int, updated domain.LineItem) domain.Order {
	loc := s.locations[s.index]

	newItems := make([]domain.LineItem, len(loc.Orders[orderIdx].Items))
	copy(newItems, loc.Orders[orderIdx].Items)
	newItems[itemIdx] = updated

	newOrder := loc.Orders[orderIdx]
	newOrder.Items = newItems

	newOrders := make([]domain.Order, len(loc.Orders))
	copy(newOrders, loc.Orders)
	newOrders[orderIdx] = newOrder

	newLoc := loc
	newLoc.Orders = newOrders

	newLocations := make([]domain.Location, len(s.locations))
	copy(newLocations, s.locations)
	newLocations[s.index] = newLoc
	s.locations = newLocations

	return newOrder
}

func toteMap(records []domain.ToteRecord) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		if r.OrderID != "" && r.ToteBarcode != "" {
			m[r.OrderID] = r.ToteBarcode
		}
	}
	return m
}
