package domain

import (
	"sort"
	"strings"
)

// SortKey selects the batch list ordering
type SortKey string

const (
	SortByPriority SortKey = "PRIORITY"
	SortByDate     SortKey = "DATE"
)

// priorityScore ranks batch priorities for list ordering
func priorityScore(priority string) int {
	switch strings.ToUpper(priority) {
	case "URGENT":
		return 4
	case "HIGH":
		return 3
	case "NORMAL":
		return 2
	case "LOW":
		return 1
	default:
		return 0
	}
}

// SortBatches orders a batch list by priority (descending) with newest-first
// as tiebreaker, or purely newest-first. The input slice is not modified.
func SortBatches(batches []BatchSummary, key SortKey) []BatchSummary {
	sorted := make([]BatchSummary, len(batches))
	copy(sorted, batches)

	sort.SliceStable(sorted, func(i, j int) bool {
		if key == SortByPriority {
			si, sj := priorityScore(sorted[i].Priority), priorityScore(sorted[j].Priority)
			if si != sj {
				return si > sj
			}
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	return sorted
}

// FilterBatchesByStatus keeps only batches with the given status. An empty
// status keeps everything.
func FilterBatchesByStatus(batches []BatchSummary, status BatchStatus) []BatchSummary {
	if status == "" {
		return batches
	}
	filtered := make([]BatchSummary, 0, len(batches))
	for _, b := range batches {
		if b.Status == status {
			filtered = append(filtered, b)
		}
	}
	return filtered
}
