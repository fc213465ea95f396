package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

type stubRouter struct {
	scanned     []string
	scanErr     error
	completed   []string
	completeErr error
}

func (s *stubRouter) ScanToteLocation(_ context.Context, _, toteBarcode, location string) error {
	if s.scanErr != nil {
		return s.scanErr
	}
	s.scanned = append(s.scanned, toteBarcode+"@"+location)
	return nil
}

func (s *stubRouter) CompleteBatch(_ context.Context, batchID string) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, batchID)
	return nil
}

// routingBatch has two orders: o1 picked clean with a server tote, o2 shorted
// by a none-remaining item and without any tote assignment.
func routingBatch() domain.BatchDetail {
	return domain.BatchDetail{
		ID:     "batch-1",
		Number: "BATCH-42",
		Status: domain.BatchStatusInProgress,
		LocationGroups: domain.LocationGroups{
			{Name: "A-01", Items: []domain.ItemRecord{
				{ID: "i1", ProductSKU: "SKU-A", OrderID: "o1", OrderNumber: "ORD-1", Quantity: 2, QuantityPicked: 2, Status: "PICKED"},
				{ID: "i2", ProductSKU: "SKU-A", OrderID: "o2", OrderNumber: "ORD-2", Quantity: 1, QuantityPicked: 0, Status: "NOT_FOUND"},
			}},
			{Name: "B-02", Items: []domain.ItemRecord{
				{ID: "i3", ProductSKU: "SKU-B", OrderID: "o1", OrderNumber: "ORD-1", Quantity: 1, QuantityPicked: 1, Status: "PICKED"},
			}},
		},
		Totes: []domain.ToteRecord{
			{OrderID: "o1", ToteBarcode: "TOTE-A"},
		},
	}
}

func newResolver(t *testing.T, detail domain.BatchDetail) (*Resolver, *stubRouter, *session.Store) {
	t.Helper()
	store := session.New(logging.Nop())
	store.LoadBatch(detail)
	router := &stubRouter{}
	m := metrics.New(metrics.DefaultConfig("test"))
	resolver := NewResolver(store, router, m, metrics.NopSink{}, logging.Nop())
	resolver.Rebuild()
	return resolver, router, store
}

func TestRebuild(t *testing.T) {
	t.Run("one tote per order across locations", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())

		totes := r.Totes()
		require.Len(t, totes, 2)
		assert.Equal(t, "o1", totes[0].OrderID)
		assert.Equal(t, "o2", totes[1].OrderID)
		assert.Equal(t, 2, r.Remaining())
		assert.Equal(t, StateAwaitingTote, r.State())
	})

	t.Run("clean order goes to production, shorted to manager", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())

		totes := r.Totes()
		assert.Equal(t, DestinationProduction, totes[0].Destination)
		assert.False(t, totes[0].HasIssues)
		assert.Equal(t, DestinationManager, totes[1].Destination)
		assert.True(t, totes[1].HasIssues)
	})

	t.Run("oversized short count stays clean", func(t *testing.T) {
		detail := routingBatch()
		detail.LocationGroups[0].Items[1].Status = "OVERSIZED"
		r, _, _ := newResolver(t, detail)

		totes := r.Totes()
		assert.Equal(t, DestinationProduction, totes[1].Destination)
	})

	t.Run("destination recomputed at activation", func(t *testing.T) {
		// A confirmation still in flight at the picking-to-routing handoff
		// can fail afterwards and revert its pick, shorting the order.
		r, _, store := newResolver(t, routingBatch())
		require.Equal(t, DestinationProduction, r.Totes()[0].Destination)

		picked := 1
		status := domain.ItemStatusPicking
		_, err := store.UpdateLineItem("i1", session.LineItemPatch{Picked: &picked, Status: &status})
		require.NoError(t, err)

		result, err := r.HandleInput(context.Background(), "TOTE-A")
		require.NoError(t, err)
		require.NotNil(t, result.Active)
		assert.Equal(t, DestinationManager, result.Active.Destination)
		assert.True(t, result.Active.HasIssues)
	})

	t.Run("destination recomputed at the location scan", func(t *testing.T) {
		r, router, store := newResolver(t, routingBatch())

		_, err := r.HandleInput(context.Background(), "TOTE-A")
		require.NoError(t, err)

		// The revert lands between the tote scan and the location scan.
		picked := 1
		status := domain.ItemStatusPicking
		_, err = store.UpdateLineItem("i1", session.LineItemPatch{Picked: &picked, Status: &status})
		require.NoError(t, err)

		result, err := r.HandleInput(context.Background(), "MGR-01")
		require.NoError(t, err)
		require.NotNil(t, result.Routed)
		assert.Equal(t, DestinationManager, result.Routed.Destination)
		assert.Equal(t, []string{"TOTE-A@MGR-01"}, router.scanned)
	})

	t.Run("under-picked order goes to manager", func(t *testing.T) {
		detail := routingBatch()
		detail.LocationGroups[1].Items[0].QuantityPicked = 0
		detail.LocationGroups[1].Items[0].Status = "PICKING"
		r, _, _ := newResolver(t, detail)

		totes := r.Totes()
		assert.Equal(t, DestinationManager, totes[0].Destination)
	})
}

func TestToteBarcodeResolution(t *testing.T) {
	t.Run("server assignment used when present", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())
		assert.Equal(t, "TOTE-A", r.Totes()[0].Barcode)
	})

	t.Run("session scan wins over server assignment", func(t *testing.T) {
		store := session.New(logging.Nop())
		store.LoadBatch(routingBatch())
		store.AssignTote("o1", "TOTE-FRESH")

		m := metrics.New(metrics.DefaultConfig("test"))
		r := NewResolver(store, &stubRouter{}, m, metrics.NopSink{}, logging.Nop())
		r.Rebuild()

		assert.Equal(t, "TOTE-FRESH", r.Totes()[0].Barcode)
	})

	t.Run("synthetic identifier when nothing is assigned", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())
		assert.Equal(t, "TOTE-o2", r.Totes()[1].Barcode)
	})

	t.Run("long order ids are shortened", func(t *testing.T) {
		detail := routingBatch()
		detail.LocationGroups[0].Items[1].OrderID = "0193e5a8-7c21-4def-9012"
		r, _, _ := newResolver(t, detail)
		assert.Equal(t, "TOTE-0193e5a8", r.Totes()[1].Barcode)
	})
}

func TestRoutingProtocol(t *testing.T) {
	ctx := context.Background()

	t.Run("tote scan then location scan routes the tote", func(t *testing.T) {
		r, router, _ := newResolver(t, routingBatch())

		result, err := r.HandleInput(ctx, "TOTE-A")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingLocation, r.State())
		require.NotNil(t, result.Active)
		assert.Equal(t, DestinationProduction, result.Active.Destination)

		result, err = r.HandleInput(ctx, "PROD-12")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingTote, r.State())
		require.NotNil(t, result.Routed)
		assert.Equal(t, "PROD-12", result.Routed.Location)
		assert.Equal(t, 1, result.Remaining)
		assert.False(t, result.BatchComplete)
		assert.Equal(t, []string{"TOTE-A@PROD-12"}, router.scanned)
	})

	t.Run("raw order id selects the tote", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())

		result, err := r.HandleInput(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingLocation, r.State())
		require.NotNil(t, result.Active)
		assert.Equal(t, "TOTE-A", result.Active.Barcode)
	})

	t.Run("tote barcode match is case-insensitive", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())
		_, err := r.HandleInput(ctx, "tote-a")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingLocation, r.State())
	})

	t.Run("unknown tote rejected", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())
		_, err := r.HandleInput(ctx, "TOTE-NOPE")
		require.Error(t, err)
		assert.Equal(t, StateAwaitingTote, r.State())
	})

	t.Run("empty scan rejected", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())
		_, err := r.HandleInput(ctx, "   ")
		assert.Error(t, err)
	})

	t.Run("already routed tote rejected", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())

		_, err := r.HandleInput(ctx, "TOTE-A")
		require.NoError(t, err)
		_, err = r.HandleInput(ctx, "PROD-12")
		require.NoError(t, err)

		_, err = r.HandleInput(ctx, "TOTE-A")
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Contains(t, appErr.Message, "already routed")
	})

	t.Run("failed location scan keeps the tote active", func(t *testing.T) {
		r, router, _ := newResolver(t, routingBatch())
		router.scanErr = apperrors.ErrServiceUnavailable("picking backend")

		_, err := r.HandleInput(ctx, "TOTE-A")
		require.NoError(t, err)

		result, err := r.HandleInput(ctx, "PROD-12")
		require.Error(t, err)
		assert.Equal(t, StateAwaitingLocation, r.State())
		require.NotNil(t, result.Active)
		assert.False(t, result.Active.Routed)

		// Retry after the backend recovers.
		router.scanErr = nil
		result, err = r.HandleInput(ctx, "PROD-12")
		require.NoError(t, err)
		require.NotNil(t, result.Routed)
	})

	t.Run("manual tote selection", func(t *testing.T) {
		r, _, _ := newResolver(t, routingBatch())

		result, err := r.SelectTote("o2")
		require.NoError(t, err)
		require.NotNil(t, result.Active)
		assert.Equal(t, "TOTE-o2", result.Active.Barcode)

		_, err = r.SelectTote("missing")
		assert.Error(t, err)
	})
}

func TestBatchAutoCompletion(t *testing.T) {
	ctx := context.Background()

	routeAll := func(t *testing.T, r *Resolver) RouteResult {
		t.Helper()
		_, err := r.HandleInput(ctx, "TOTE-A")
		require.NoError(t, err)
		_, err = r.HandleInput(ctx, "PROD-12")
		require.NoError(t, err)
		_, err = r.HandleInput(ctx, "TOTE-o2")
		require.NoError(t, err)
		result, err := r.HandleInput(ctx, "MGR-01")
		require.NoError(t, err)
		return result
	}

	t.Run("last routed tote completes the batch", func(t *testing.T) {
		r, router, store := newResolver(t, routingBatch())

		result := routeAll(t, r)
		assert.True(t, result.BatchComplete)
		assert.Equal(t, 0, result.Remaining)
		assert.Equal(t, []string{"batch-1"}, router.completed)
		assert.Empty(t, store.BatchID())
	})

	t.Run("completion failure keeps the session", func(t *testing.T) {
		r, router, store := newResolver(t, routingBatch())
		router.completeErr = apperrors.ErrServiceUnavailable("picking backend")

		_, err := r.HandleInput(ctx, "TOTE-A")
		require.NoError(t, err)
		_, err = r.HandleInput(ctx, "PROD-12")
		require.NoError(t, err)
		_, err = r.HandleInput(ctx, "TOTE-o2")
		require.NoError(t, err)
		result, err := r.HandleInput(ctx, "MGR-01")

		require.Error(t, err)
		assert.False(t, result.BatchComplete)
		assert.Equal(t, "batch-1", store.BatchID())
		assert.Equal(t, 0, result.Remaining)
	})
}
