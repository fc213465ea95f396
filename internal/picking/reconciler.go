package picking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// Pick methods, reported to the backend for audit
const (
	MethodScan   = "SCAN"
	MethodManual = "MANUAL"
)

// Confirmer is the slice of the backend API the reconciler needs. Each call
// returns the backend's authoritative item state.
type Confirmer interface {
	ConfirmPick(ctx context.Context, batchID, lineItemID string, quantity int, location, method string) (domain.ItemState, error)
	MarkOversized(ctx context.Context, batchID, lineItemID, location string) (domain.ItemState, error)
	MarkNoneRemaining(ctx context.Context, batchID, lineItemID, notes string) (domain.ItemState, error)
}

// Outcome is the settled result of a confirmation, delivered asynchronously
// after the backend responds. Reverted is set when a failed confirmation
// rolled the local state back to its pre-pick values.
type Outcome struct {
	Item          domain.LineItem
	OrderComplete bool
	Reverted      bool
	Err           error
}

// SettleFunc receives the outcome of a confirmation. Called from the
// confirmation goroutine after the store has been updated.
type SettleFunc func(Outcome)

// Reconciler applies picks optimistically and reconciles them with the
// backend. The local mutation happens first so the picker sees the count move
// immediately; the backend call runs in the background, and its response is
// adopted as truth on success or the mutation is reverted on failure.
type Reconciler struct {
	store    *session.Store
	confirm  Confirmer
	metrics  *metrics.Metrics
	sink     metrics.EventSink
	logger   *logging.Logger
	timeout  time.Duration
	inFlight sync.WaitGroup
}

// NewReconciler creates a Reconciler
func NewReconciler(store *session.Store, confirm Confirmer, m *metrics.Metrics, sink metrics.EventSink, logger *logging.Logger) *Reconciler {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Reconciler{
		store:   store,
		confirm: confirm,
		metrics: m,
		sink:    sink,
		logger:  logger.WithComponent("picking"),
		timeout: 30 * time.Second,
	}
}

// Pick increments an item's picked quantity and confirms the pick with the
// backend. The increment is applied before returning; an over-pick is rejected
// synchronously with no mutation and no backend call. The returned PickResult
// reflects the optimistic state; settle fires later with the reconciled one.
func (r *Reconciler) Pick(lineItemID string, quantity int, method string, settle SettleFunc) (session.PickResult, error) {
	before, err := r.store.Item(lineItemID)
	if err != nil {
		return session.PickResult{}, err
	}

	result, err := r.store.IncrementPicked(lineItemID, quantity)
	if err != nil {
		var overPick *session.OverPickError
		if errors.As(err, &overPick) {
			r.metrics.OverPicksRejected.Inc()
			r.sink.Emit("over_pick_rejected", map[string]any{
				"lineItemId": lineItemID,
				"max":        overPick.Max,
			})
		}
		return session.PickResult{}, err
	}

	// Terminal or already-full items no-op locally; nothing to reconcile.
	if result.Item.Picked == before.Picked && result.Item.Status == before.Status {
		return result, nil
	}

	r.launch(lineItemID, before, method, settle, func(ctx context.Context) (domain.ItemState, error) {
		return r.confirm.ConfirmPick(ctx, r.store.BatchID(), lineItemID, quantity, before.LocationCode, method)
	})
	return result, nil
}

// MarkOversized flags an item as oversized stock. The status change is applied
// optimistically and reverted if the backend rejects it.
func (r *Reconciler) MarkOversized(lineItemID string, settle SettleFunc) (domain.LineItem, error) {
	before, err := r.store.Item(lineItemID)
	if err != nil {
		return domain.LineItem{}, err
	}
	if before.Status.IsTerminal() {
		return before, nil
	}

	status := domain.ItemStatusOversized
	oversized := true
	updated, err := r.store.UpdateLineItem(lineItemID, session.LineItemPatch{
		Status:    &status,
		Oversized: &oversized,
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	r.launch(lineItemID, before, "OVERSIZED", settle, func(ctx context.Context) (domain.ItemState, error) {
		return r.confirm.MarkOversized(ctx, r.store.BatchID(), lineItemID, before.LocationCode)
	})
	return updated, nil
}

// MarkNoneRemaining flags an item as out of stock at the shelf
func (r *Reconciler) MarkNoneRemaining(lineItemID, notes string, settle SettleFunc) (domain.LineItem, error) {
	before, err := r.store.Item(lineItemID)
	if err != nil {
		return domain.LineItem{}, err
	}
	if before.Status.IsTerminal() {
		return before, nil
	}

	status := domain.ItemStatusNoneRemaining
	updated, err := r.store.UpdateLineItem(lineItemID, session.LineItemPatch{
		Status: &status,
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	r.launch(lineItemID, before, "NONE_REMAINING", settle, func(ctx context.Context) (domain.ItemState, error) {
		return r.confirm.MarkNoneRemaining(ctx, r.store.BatchID(), lineItemID, notes)
	})
	return updated, nil
}

// launch runs a backend confirmation in the background. On success the
// backend's item state overwrites the optimistic one; on failure the item is
// reverted to its pre-mutation snapshot.
func (r *Reconciler) launch(lineItemID string, before domain.LineItem, method string, settle SettleFunc, call func(context.Context) (domain.ItemState, error)) {
	r.inFlight.Add(1)
	r.metrics.ConfirmationsInFlight.Inc()

	go func() {
		defer r.inFlight.Done()
		defer r.metrics.ConfirmationsInFlight.Dec()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		state, err := call(ctx)
		if err != nil {
			r.metrics.PicksConfirmed.WithLabelValues(method, "failure").Inc()
			r.metrics.PickReverts.Inc()
			r.logger.WithError(err).Warn("Confirmation failed, reverting",
				"lineItemId", lineItemID,
				"method", method,
			)

			reverted, revertErr := r.store.UpdateLineItem(lineItemID, session.LineItemPatch{
				Picked:    &before.Picked,
				Status:    &before.Status,
				Oversized: &before.Oversized,
			})
			if revertErr != nil {
				// The location moved on; the refresh on next load corrects it.
				// The callback still gets the pre-mutation snapshot.
				r.logger.WithError(revertErr).Error("Revert failed", "lineItemId", lineItemID)
				reverted = before
			}
			r.sink.Emit("pick_reverted", map[string]any{
				"lineItemId": lineItemID,
				"method":     method,
			})
			if settle != nil {
				settle(Outcome{Item: reverted, Reverted: true, Err: err})
			}
			return
		}

		adopted, adoptErr := r.store.UpdateLineItem(lineItemID, session.LineItemPatch{
			Picked: &state.Picked,
			Status: &state.Status,
		})
		if adoptErr != nil {
			r.logger.WithError(adoptErr).Error("Could not adopt confirmed state", "lineItemId", lineItemID)
		}

		r.metrics.PicksConfirmed.WithLabelValues(method, "success").Inc()
		r.sink.Emit("pick_confirmed", map[string]any{
			"lineItemId": lineItemID,
			"method":     method,
			"picked":     state.Picked,
			"status":     string(state.Status),
		})
		if settle != nil {
			settle(Outcome{Item: adopted, Err: nil})
		}
	}()
}

// Wait blocks until all in-flight confirmations settle. Used at shutdown so
// picks already made are not lost.
func (r *Reconciler) Wait() {
	r.inFlight.Wait()
}
