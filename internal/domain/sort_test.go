package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortBatches(t *testing.T) {
	now := time.Now()
	batches := []BatchSummary{
		{ID: "b1", Priority: "LOW", CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "b2", Priority: "URGENT", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "b3", Priority: "HIGH", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "b4", Priority: "URGENT", CreatedAt: now},
	}

	t.Run("by priority, newest first within a tier", func(t *testing.T) {
		sorted := SortBatches(batches, SortByPriority)

		require.Len(t, sorted, 4)
		assert.Equal(t, "b4", sorted[0].ID)
		assert.Equal(t, "b2", sorted[1].ID)
		assert.Equal(t, "b3", sorted[2].ID)
		assert.Equal(t, "b1", sorted[3].ID)
	})

	t.Run("by date", func(t *testing.T) {
		sorted := SortBatches(batches, SortByDate)

		assert.Equal(t, "b4", sorted[0].ID)
		assert.Equal(t, "b1", sorted[1].ID)
		assert.Equal(t, "b2", sorted[3].ID)
	})

	t.Run("does not modify the input", func(t *testing.T) {
		SortBatches(batches, SortByPriority)
		assert.Equal(t, "b1", batches[0].ID)
	})
}

func TestFilterBatchesByStatus(t *testing.T) {
	batches := []BatchSummary{
		{ID: "b1", Status: BatchStatusAssigned},
		{ID: "b2", Status: BatchStatusInProgress},
		{ID: "b3", Status: BatchStatusAssigned},
	}

	filtered := FilterBatchesByStatus(batches, BatchStatusAssigned)
	require.Len(t, filtered, 2)
	assert.Equal(t, "b1", filtered[0].ID)

	assert.Len(t, FilterBatchesByStatus(batches, ""), 3)
	assert.Empty(t, FilterBatchesByStatus(batches, BatchStatusComplete))
}
