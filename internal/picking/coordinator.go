package picking

import (
	"context"
	"fmt"

	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// BatchAPI is the slice of the backend API the coordinator needs
type BatchAPI interface {
	BatchDetail(ctx context.Context, batchID string) (domain.BatchDetail, error)
	StartBatch(ctx context.Context, batchID string) error
	GetToteForOrder(ctx context.Context, batchID, orderID, toteBarcode string) (string, error)
}

// Progress tells the caller where the traversal moved after an action
type Progress int

const (
	// ProgressSameOrder means the active order still has items to pick
	ProgressSameOrder Progress = iota
	// ProgressNextOrder means the active order completed and the next order
	// at this location is now active
	ProgressNextOrder
	// ProgressNextLocation means this location completed and the traversal
	// advanced to the next incomplete one
	ProgressNextLocation
	// ProgressPickingDone means every location is complete; tote routing is next
	ProgressPickingDone
)

// ScanResult is the outcome of a handled scan
type ScanResult struct {
	// ToteVerified is set when the scan was consumed as a tote verification
	// rather than a product pick
	ToteVerified bool
	// Tote is the backend-confirmed tote barcode when ToteVerified is set
	Tote string
	// Pick carries the optimistic pick state for product scans
	Pick *session.PickResult
	// Progress reports traversal movement caused by this scan
	Progress Progress
	// NeedTote is set when the now-active order has no verified tote yet,
	// so the next scan is expected to be its tote barcode
	NeedTote bool
}

// Coordinator drives the picking flow for one loaded batch: which order is
// active, whether a tote verification is pending, and how the traversal
// advances as orders and locations complete. It is not safe for concurrent
// use; scans arrive on a single goroutine.
type Coordinator struct {
	store   *session.Store
	recon   *Reconciler
	client  BatchAPI
	metrics *metrics.Metrics
	logger  *logging.Logger

	activeOrder int
}

// NewCoordinator creates a Coordinator
func NewCoordinator(store *session.Store, recon *Reconciler, client BatchAPI, m *metrics.Metrics, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		recon:   recon,
		client:  client,
		metrics: m,
		logger:  logger.WithComponent("coordinator"),
	}
}

// StartBatch loads a batch and positions the traversal at its first incomplete
// order. A batch still in ASSIGNED status is started server-side first.
func (c *Coordinator) StartBatch(ctx context.Context, batchID string) error {
	detail, err := c.client.BatchDetail(ctx, batchID)
	if err != nil {
		return err
	}
	if detail.Status == domain.BatchStatusAssigned {
		if err := c.client.StartBatch(ctx, batchID); err != nil {
			return err
		}
		detail.Status = domain.BatchStatusInProgress
	}

	c.store.LoadBatch(detail)
	c.activeOrder = c.store.FirstIncompleteOrder()
	return nil
}

// Refresh re-fetches the batch and rebuilds local state, keeping the traversal
// position where possible.
func (c *Coordinator) Refresh(ctx context.Context) error {
	batchID := c.store.BatchID()
	if batchID == "" {
		return session.ErrNoBatch
	}
	detail, err := c.client.BatchDetail(ctx, batchID)
	if err != nil {
		return err
	}
	c.store.RefreshFromServer(detail)
	c.activeOrder = c.store.FirstIncompleteOrder()
	return nil
}

// ActiveOrder returns the order currently being picked, if any
func (c *Coordinator) ActiveOrder() (domain.Order, bool) {
	loc, ok := c.store.CurrentLocation()
	if !ok || c.activeOrder >= len(loc.Orders) {
		return domain.Order{}, false
	}
	return loc.Orders[c.activeOrder], true
}

// NeedTote reports whether the active order requires a tote verification
// before picking can proceed.
func (c *Coordinator) NeedTote() bool {
	order, ok := c.ActiveOrder()
	if !ok || order.Complete() {
		return false
	}
	return !c.store.HasSessionTote(order.ID)
}

// HandleScan routes one normalized scan. While the active order awaits tote
// verification the code is treated as a tote barcode and confirmed with the
// backend; otherwise it is matched as a product scan and picked.
func (c *Coordinator) HandleScan(ctx context.Context, code string, settle SettleFunc) (ScanResult, error) {
	order, ok := c.ActiveOrder()
	if !ok {
		return ScanResult{}, session.ErrNoBatch
	}

	if c.NeedTote() {
		confirmed, err := c.client.GetToteForOrder(ctx, c.store.BatchID(), order.ID, code)
		if err != nil {
			c.metrics.ScansRejected.WithLabelValues("tote_rejected").Inc()
			return ScanResult{}, err
		}
		c.store.AssignTote(order.ID, confirmed)
		c.logger.Info("Tote verified", "orderId", order.ID, "tote", confirmed)
		return ScanResult{ToteVerified: true, Tote: confirmed}, nil
	}

	match := c.store.MatchScan(code, c.activeOrder)
	switch match.Kind {
	case session.MatchActive:
		return c.pickMatched(match, settle)

	case session.MatchOtherOrder:
		c.metrics.ScansRejected.WithLabelValues("wrong_tote").Inc()
		return ScanResult{}, apperrors.ErrValidation(fmt.Sprintf(
			"item belongs to order %s; swap to that order's tote", match.Order.Number,
		)).WithDetail("orderId", match.Order.ID)

	default:
		c.metrics.ScansRejected.WithLabelValues("no_match").Inc()
		return ScanResult{}, apperrors.ErrValidation("barcode does not match any item at this location")
	}
}

// ManualPick increments a line item without a scan, for touch-confirmed picks
func (c *Coordinator) ManualPick(lineItemID string, quantity int, settle SettleFunc) (ScanResult, error) {
	result, err := c.recon.Pick(lineItemID, quantity, MethodManual, settle)
	if err != nil {
		return ScanResult{}, err
	}
	return c.afterPick(result), nil
}

// MarkOversized flags a line item and advances if its order completed
func (c *Coordinator) MarkOversized(lineItemID string, settle SettleFunc) (ScanResult, error) {
	if _, err := c.recon.MarkOversized(lineItemID, settle); err != nil {
		return ScanResult{}, err
	}
	return c.afterException(), nil
}

// MarkNoneRemaining flags a line item and advances if its order completed
func (c *Coordinator) MarkNoneRemaining(lineItemID, notes string, settle SettleFunc) (ScanResult, error) {
	if _, err := c.recon.MarkNoneRemaining(lineItemID, notes, settle); err != nil {
		return ScanResult{}, err
	}
	return c.afterException(), nil
}

// SkipLocation moves to the next incomplete location without finishing this
// one. Returns ProgressPickingDone when nothing is left anywhere.
func (c *Coordinator) SkipLocation() ScanResult {
	if !c.store.AdvanceLocation() {
		return ScanResult{Progress: ProgressPickingDone}
	}
	c.activeOrder = c.store.FirstIncompleteOrder()
	return ScanResult{Progress: ProgressNextLocation, NeedTote: c.NeedTote()}
}

func (c *Coordinator) pickMatched(match session.Match, settle SettleFunc) (ScanResult, error) {
	result, err := c.recon.Pick(match.Item.ID, 1, MethodScan, settle)
	if err != nil {
		return ScanResult{}, err
	}
	c.metrics.ScansAccepted.WithLabelValues("product").Inc()
	return c.afterPick(result), nil
}

// afterPick advances the traversal when the optimistic pick completed the
// active order. Advancement keys off the optimistic state; a later revert
// surfaces through the refresh rather than by walking the picker backwards.
func (c *Coordinator) afterPick(result session.PickResult) ScanResult {
	out := ScanResult{Pick: &result, Progress: ProgressSameOrder}
	if result.OrderComplete {
		out.Progress = c.advance()
		out.NeedTote = c.NeedTote()
	}
	return out
}

func (c *Coordinator) afterException() ScanResult {
	order, ok := c.ActiveOrder()
	if ok && order.Complete() {
		progress := c.advance()
		return ScanResult{Progress: progress, NeedTote: c.NeedTote()}
	}
	return ScanResult{Progress: ProgressSameOrder}
}

// advance moves to the next incomplete order at this location, then to the
// next incomplete location, then reports picking done.
func (c *Coordinator) advance() Progress {
	if next, ok := c.store.NextIncompleteOrder(c.activeOrder); ok {
		c.activeOrder = next
		return ProgressNextOrder
	}
	if c.store.AdvanceLocation() {
		c.activeOrder = c.store.FirstIncompleteOrder()
		return ProgressNextLocation
	}
	return ProgressPickingDone
}
