package domain

import "strings"

// ItemStatus represents the picking status of a line item
type ItemStatus string

const (
	ItemStatusPending       ItemStatus = "pending"
	ItemStatusPicking       ItemStatus = "picking"
	ItemStatusPicked        ItemStatus = "picked"
	ItemStatusNoneRemaining ItemStatus = "none_remaining"
	ItemStatusOversized     ItemStatus = "oversized"
)

// IsValid checks if the status is a known value
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusPicking, ItemStatusPicked, ItemStatusNoneRemaining, ItemStatusOversized:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can no longer change within a session.
// Terminal statuses are only left by a full server-driven refresh.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemStatusPicked, ItemStatusNoneRemaining, ItemStatusOversized:
		return true
	default:
		return false
	}
}

// IsException reports whether the status marks an item that cannot be picked
func (s ItemStatus) IsException() bool {
	return s == ItemStatusNoneRemaining || s == ItemStatusOversized
}

// CanTransitionTo checks if this status can transition to another status
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	validTransitions := map[ItemStatus][]ItemStatus{
		ItemStatusPending:       {ItemStatusPicking, ItemStatusPicked, ItemStatusNoneRemaining, ItemStatusOversized},
		ItemStatusPicking:       {ItemStatusPicking, ItemStatusPicked, ItemStatusNoneRemaining, ItemStatusOversized},
		ItemStatusPicked:        {}, // Terminal
		ItemStatusNoneRemaining: {}, // Terminal
		ItemStatusOversized:     {}, // Terminal
	}

	for _, allowed := range validTransitions[s] {
		if target == allowed {
			return true
		}
	}
	return false
}

// backend enum -> session status
var statusMap = map[string]ItemStatus{
	"PENDING":   ItemStatusPending,
	"PICKING":   ItemStatusPicking,
	"PICKED":    ItemStatusPicked,
	"NOT_FOUND": ItemStatusNoneRemaining,
	"OVERSIZED": ItemStatusOversized,
}

// NormalizeItemStatus maps the backend status enum to a session ItemStatus.
// Unrecognized values pass through lowercased; empty input defaults to pending.
func NormalizeItemStatus(raw string) ItemStatus {
	if raw == "" {
		return ItemStatusPending
	}
	if s, ok := statusMap[raw]; ok {
		return s
	}
	return ItemStatus(strings.ToLower(raw))
}

// BatchStatus represents the lifecycle status of a batch
type BatchStatus string

const (
	BatchStatusAssigned   BatchStatus = "ASSIGNED"
	BatchStatusInProgress BatchStatus = "IN_PROGRESS"
	BatchStatusComplete   BatchStatus = "COMPLETE"
)
