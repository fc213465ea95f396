package routing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// State is the routing protocol position: scan a tote, then scan where it goes
type State string

const (
	StateAwaitingTote     State = "AWAITING_TOTE"
	StateAwaitingLocation State = "AWAITING_LOCATION"
)

// Destination is where a routed tote belongs
type Destination string

const (
	// DestinationProduction receives cleanly picked totes
	DestinationProduction Destination = "production"
	// DestinationManager receives totes with shorted or missing items
	DestinationManager Destination = "manager"
)

// Tote is one order's tote awaiting routing
type Tote struct {
	ID          string
	OrderID     string
	OrderNumber string
	Customer    string
	Barcode     string
	Destination Destination
	HasIssues   bool
	Routed      bool
	RoutedAt    time.Time
	Location    string
}

// RouteResult reports what a routing input did
type RouteResult struct {
	State         State
	Active        *Tote
	Routed        *Tote
	Remaining     int
	BatchComplete bool
}

// Router is the slice of the backend API the resolver needs
type Router interface {
	ScanToteLocation(ctx context.Context, batchID, toteBarcode, location string) error
	CompleteBatch(ctx context.Context, batchID string) error
}

// Resolver drives tote routing after picking finishes: each tote is scanned,
// classified to a destination, and confirmed against a scanned drop location.
// The batch completes automatically once every tote is routed. Not safe for
// concurrent use; inputs arrive on a single goroutine.
type Resolver struct {
	store   *session.Store
	router  Router
	metrics *metrics.Metrics
	sink    metrics.EventSink
	logger  *logging.Logger

	state  State
	totes  []Tote
	active int
}

// NewResolver creates a Resolver
func NewResolver(store *session.Store, router Router, m *metrics.Metrics, sink metrics.EventSink, logger *logging.Logger) *Resolver {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Resolver{
		store:   store,
		router:  router,
		metrics: m,
		sink:    sink,
		logger:  logger.WithComponent("routing"),
		state:   StateAwaitingTote,
		active:  -1,
	}
}

// Rebuild derives the routing worklist from the session. Orders are collected
// across every location (an order's items can span several shelves) and each
// gets one tote, classified by whether all of its items were cleanly picked.
func (r *Resolver) Rebuild() {
	type orderAgg struct {
		number   string
		customer string
		barcode  string
		items    []domain.LineItem
	}

	var orderIDs []string
	byOrder := make(map[string]*orderAgg)
	for _, loc := range r.store.Locations() {
		for _, order := range loc.Orders {
			agg, ok := byOrder[order.ID]
			if !ok {
				agg = &orderAgg{
					number:   order.Number,
					customer: order.Customer,
					barcode:  order.ToteBarcode,
				}
				byOrder[order.ID] = agg
				orderIDs = append(orderIDs, order.ID)
			}
			agg.items = append(agg.items, order.Items...)
		}
	}

	totes := make([]Tote, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		agg := byOrder[orderID]
		tote := Tote{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			OrderNumber: agg.number,
			Customer:    agg.customer,
			Barcode:     r.toteBarcode(orderID, agg.barcode),
		}
		tote.HasIssues, tote.Destination = classifyItems(agg.items)
		totes = append(totes, tote)
	}

	r.totes = totes
	r.state = StateAwaitingTote
	r.active = -1
	r.logger.Info("Routing worklist built", "totes", len(totes))
}

// toteBarcode resolves an order's tote identifier: this session's verified
// scan wins, then the batch payload's assignment, then the order's own
// barcode, then a short synthetic identifier so the tote is still routable.
func (r *Resolver) toteBarcode(orderID, orderBarcode string) string {
	if barcode, ok := r.store.ToteFor(orderID); ok && barcode != "" {
		return barcode
	}
	if orderBarcode != "" {
		return orderBarcode
	}
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return "TOTE-" + short
}

// classifyItems derives a tote's destination from its order's items across
// every location, using the order's own issue rule.
func classifyItems(items []domain.LineItem) (bool, Destination) {
	if (domain.Order{Items: items}).HasIssues() {
		return true, DestinationManager
	}
	return false, DestinationProduction
}

// orderItems collects the order's line items from every location
func (r *Resolver) orderItems(orderID string) []domain.LineItem {
	var items []domain.LineItem
	for _, loc := range r.store.Locations() {
		for _, order := range loc.Orders {
			if order.ID == orderID {
				items = append(items, order.Items...)
			}
		}
	}
	return items
}

// reclassify refreshes a tote's destination from current store state. Item
// status can still change after routing begins (a confirmation in flight at
// the picking-to-routing handoff may fail and revert its pick), so the
// rebuild-time classification is never trusted at routing time.
func (r *Resolver) reclassify(i int) {
	tote := &r.totes[i]
	tote.HasIssues, tote.Destination = classifyItems(r.orderItems(tote.OrderID))
}

// State returns the protocol position
func (r *Resolver) State() State {
	return r.state
}

// Totes returns a snapshot of the routing worklist
func (r *Resolver) Totes() []Tote {
	snapshot := make([]Tote, len(r.totes))
	copy(snapshot, r.totes)
	return snapshot
}

// ActiveTote returns the tote awaiting a location scan, if any
func (r *Resolver) ActiveTote() (Tote, bool) {
	if r.active < 0 || r.active >= len(r.totes) {
		return Tote{}, false
	}
	return r.totes[r.active], true
}

// Remaining counts totes not yet routed
func (r *Resolver) Remaining() int {
	n := 0
	for _, t := range r.totes {
		if !t.Routed {
			n++
		}
	}
	return n
}

// HandleInput consumes one scan according to the protocol state: a tote
// barcode first, then the destination location it was dropped at. A failed
// location confirmation keeps the tote active so the picker can rescan.
func (r *Resolver) HandleInput(ctx context.Context, code string) (RouteResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return RouteResult{}, apperrors.ErrValidation("empty scan")
	}

	switch r.state {
	case StateAwaitingLocation:
		return r.routeActive(ctx, code)
	default:
		return r.selectByBarcode(code)
	}
}

// SelectTote activates a tote by order id, the manual tap path
func (r *Resolver) SelectTote(orderID string) (RouteResult, error) {
	for i, tote := range r.totes {
		if tote.OrderID == orderID {
			return r.activate(i)
		}
	}
	return RouteResult{}, apperrors.ErrNotFound("tote")
}

// selectByBarcode matches a scan against each tote's barcode or its raw order
// identifier; order labels double as tote labels when no tote was assigned.
func (r *Resolver) selectByBarcode(code string) (RouteResult, error) {
	scanned := strings.ToUpper(code)
	for i, tote := range r.totes {
		if strings.ToUpper(tote.Barcode) == scanned || strings.ToUpper(tote.OrderID) == scanned {
			return r.activate(i)
		}
	}
	return RouteResult{}, apperrors.ErrValidation("tote not recognized in this batch")
}

func (r *Resolver) activate(i int) (RouteResult, error) {
	if r.totes[i].Routed {
		return RouteResult{}, apperrors.ErrValidation("tote already routed to " + r.totes[i].Location)
	}
	r.reclassify(i)
	r.active = i
	r.state = StateAwaitingLocation
	active := r.totes[i]
	return RouteResult{
		State:     r.state,
		Active:    &active,
		Remaining: r.Remaining(),
	}, nil
}

func (r *Resolver) routeActive(ctx context.Context, location string) (RouteResult, error) {
	r.reclassify(r.active)
	tote := r.totes[r.active]

	if err := r.router.ScanToteLocation(ctx, r.store.BatchID(), tote.Barcode, location); err != nil {
		r.logger.WithError(err).Warn("Tote location scan rejected",
			"tote", tote.Barcode,
			"location", location,
		)
		active := tote
		return RouteResult{State: r.state, Active: &active}, err
	}

	r.totes[r.active].Routed = true
	r.totes[r.active].RoutedAt = time.Now()
	r.totes[r.active].Location = location
	routed := r.totes[r.active]

	r.active = -1
	r.state = StateAwaitingTote

	r.metrics.TotesRouted.WithLabelValues(string(routed.Destination)).Inc()
	r.sink.Emit("tote_routed", map[string]any{
		"orderId":     routed.OrderID,
		"tote":        routed.Barcode,
		"destination": string(routed.Destination),
		"location":    location,
	})

	result := RouteResult{
		State:     r.state,
		Routed:    &routed,
		Remaining: r.Remaining(),
	}

	if result.Remaining == 0 {
		if err := r.completeBatch(ctx); err != nil {
			return result, err
		}
		result.BatchComplete = true
	}
	return result, nil
}

func (r *Resolver) completeBatch(ctx context.Context) error {
	batchID := r.store.BatchID()
	if err := r.router.CompleteBatch(ctx, batchID); err != nil {
		r.logger.WithError(err).Error("Batch completion failed", "batchId", batchID)
		return err
	}

	r.metrics.BatchesCompleted.Inc()
	r.sink.Emit("batch_completed", map[string]any{
		"batchId": batchID,
		"totes":   len(r.totes),
	})
	r.logger.Info("Batch completed", "batchId", batchID, "totes", len(r.totes))
	r.store.Clear()
	return nil
}
