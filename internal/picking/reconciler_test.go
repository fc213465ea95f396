package picking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// stubConfirmer is a scriptable backend for reconciliation tests. When gate is
// non-nil, calls block until it is closed.
type stubConfirmer struct {
	mu    sync.Mutex
	state domain.ItemState
	err   error
	gate  chan struct{}
	calls int
}

func (s *stubConfirmer) confirm() (domain.ItemState, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.state, s.err
}

func (s *stubConfirmer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubConfirmer) ConfirmPick(context.Context, string, string, int, string, string) (domain.ItemState, error) {
	return s.confirm()
}

func (s *stubConfirmer) MarkOversized(context.Context, string, string, string) (domain.ItemState, error) {
	return s.confirm()
}

func (s *stubConfirmer) MarkNoneRemaining(context.Context, string, string, string) (domain.ItemState, error) {
	return s.confirm()
}

func batchFixture() domain.BatchDetail {
	return domain.BatchDetail{
		ID:     "batch-1",
		Number: "BATCH-42",
		Status: domain.BatchStatusInProgress,
		LocationGroups: domain.LocationGroups{
			{Name: "A-01", Items: []domain.ItemRecord{
				{ID: "i1", ProductSKU: "SKU-A", ProductBarcode: "811111", OrderID: "o1", OrderNumber: "ORD-1", Quantity: 3, Status: "PENDING"},
				{ID: "i2", ProductSKU: "SKU-A", ProductBarcode: "811111", OrderID: "o2", OrderNumber: "ORD-2", Quantity: 1, Status: "PENDING"},
			}},
			{Name: "B-02", Items: []domain.ItemRecord{
				{ID: "i3", ProductSKU: "SKU-B", ProductBarcode: "822222", OrderID: "o1", OrderNumber: "ORD-1", Quantity: 2, Status: "PENDING"},
			}},
		},
	}
}

func newReconciler(t *testing.T, confirmer Confirmer) (*Reconciler, *session.Store) {
	t.Helper()
	store := session.New(logging.Nop())
	store.LoadBatch(batchFixture())
	m := metrics.New(metrics.DefaultConfig("test"))
	return NewReconciler(store, confirmer, m, metrics.NopSink{}, logging.Nop()), store
}

func awaitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case outcome := <-ch:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation never settled")
		return Outcome{}
	}
}

func TestReconcilerPick(t *testing.T) {
	t.Run("optimistic state visible before confirmation settles", func(t *testing.T) {
		confirmer := &stubConfirmer{
			state: domain.ItemState{Picked: 1, Status: domain.ItemStatusPicking},
			gate:  make(chan struct{}),
		}
		recon, store := newReconciler(t, confirmer)

		result, err := recon.Pick("i1", 1, MethodScan, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Item.Picked)

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, 1, item.Picked)
		assert.Equal(t, domain.ItemStatusPicking, item.Status)

		close(confirmer.gate)
		recon.Wait()
	})

	t.Run("backend truth adopted on success", func(t *testing.T) {
		// Backend reports more picked than the local increment, e.g. a pick
		// recorded on another device for the same batch.
		confirmer := &stubConfirmer{
			state: domain.ItemState{Picked: 3, Status: domain.ItemStatusPicked},
		}
		recon, store := newReconciler(t, confirmer)

		settled := make(chan Outcome, 1)
		_, err := recon.Pick("i1", 1, MethodScan, func(o Outcome) { settled <- o })
		require.NoError(t, err)

		outcome := awaitOutcome(t, settled)
		require.NoError(t, outcome.Err)
		assert.False(t, outcome.Reverted)

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, 3, item.Picked)
		assert.Equal(t, domain.ItemStatusPicked, item.Status)
	})

	t.Run("failed confirmation reverts the optimistic pick", func(t *testing.T) {
		confirmer := &stubConfirmer{err: apperrors.ErrServiceUnavailable("picking backend")}
		recon, store := newReconciler(t, confirmer)

		settled := make(chan Outcome, 1)
		_, err := recon.Pick("i1", 1, MethodScan, func(o Outcome) { settled <- o })
		require.NoError(t, err)

		outcome := awaitOutcome(t, settled)
		require.Error(t, outcome.Err)
		assert.True(t, outcome.Reverted)

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, 0, item.Picked)
		assert.Equal(t, domain.ItemStatusPending, item.Status)
	})

	t.Run("failed revert still settles with the pre-pick snapshot", func(t *testing.T) {
		confirmer := &stubConfirmer{
			err:  apperrors.ErrServiceUnavailable("picking backend"),
			gate: make(chan struct{}),
		}
		recon, store := newReconciler(t, confirmer)

		settled := make(chan Outcome, 1)
		_, err := recon.Pick("i1", 1, MethodScan, func(o Outcome) { settled <- o })
		require.NoError(t, err)

		// Move off the location while the confirmation is in flight, so the
		// revert cannot find the item anymore.
		require.True(t, store.AdvanceLocation())
		close(confirmer.gate)

		outcome := awaitOutcome(t, settled)
		require.Error(t, outcome.Err)
		assert.True(t, outcome.Reverted)
		assert.Equal(t, "i1", outcome.Item.ID)
		assert.Equal(t, 0, outcome.Item.Picked)
		assert.Equal(t, domain.ItemStatusPending, outcome.Item.Status)
	})

	t.Run("over-pick rejected synchronously without a backend call", func(t *testing.T) {
		confirmer := &stubConfirmer{}
		recon, store := newReconciler(t, confirmer)

		_, err := recon.Pick("i1", 4, MethodManual, nil)
		var overPick *session.OverPickError
		require.ErrorAs(t, err, &overPick)
		assert.Equal(t, 3, overPick.Max)

		recon.Wait()
		assert.Equal(t, 0, confirmer.callCount())

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, 0, item.Picked)
	})

	t.Run("terminal item no-op skips the backend", func(t *testing.T) {
		confirmer := &stubConfirmer{
			state: domain.ItemState{Picked: 1, Status: domain.ItemStatusPicked},
		}
		recon, _ := newReconciler(t, confirmer)

		settled := make(chan Outcome, 1)
		_, err := recon.Pick("i2", 1, MethodScan, func(o Outcome) { settled <- o })
		require.NoError(t, err)
		awaitOutcome(t, settled)
		recon.Wait()
		require.Equal(t, 1, confirmer.callCount())

		result, err := recon.Pick("i2", 1, MethodScan, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Item.Picked)
		recon.Wait()
		assert.Equal(t, 1, confirmer.callCount())
	})
}

func TestReconcilerExceptions(t *testing.T) {
	t.Run("oversized applied optimistically", func(t *testing.T) {
		confirmer := &stubConfirmer{
			state: domain.ItemState{Picked: 0, Status: domain.ItemStatusOversized},
			gate:  make(chan struct{}),
		}
		recon, store := newReconciler(t, confirmer)

		updated, err := recon.MarkOversized("i1", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusOversized, updated.Status)
		assert.True(t, updated.Oversized)

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusOversized, item.Status)

		close(confirmer.gate)
		recon.Wait()
	})

	t.Run("none remaining reverted on backend rejection", func(t *testing.T) {
		confirmer := &stubConfirmer{err: apperrors.ErrValidation("item already picked elsewhere")}
		recon, store := newReconciler(t, confirmer)

		settled := make(chan Outcome, 1)
		_, err := recon.MarkNoneRemaining("i1", "shelf empty", func(o Outcome) { settled <- o })
		require.NoError(t, err)

		outcome := awaitOutcome(t, settled)
		assert.True(t, outcome.Reverted)

		item, err := store.Item("i1")
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusPending, item.Status)
	})

	t.Run("terminal item cannot be re-marked", func(t *testing.T) {
		confirmer := &stubConfirmer{
			state: domain.ItemState{Picked: 0, Status: domain.ItemStatusOversized},
		}
		recon, _ := newReconciler(t, confirmer)

		_, err := recon.MarkOversized("i1", nil)
		require.NoError(t, err)
		recon.Wait()
		require.Equal(t, 1, confirmer.callCount())

		_, err = recon.MarkNoneRemaining("i1", "", nil)
		require.NoError(t, err)
		recon.Wait()
		assert.Equal(t, 1, confirmer.callCount())
	})
}
