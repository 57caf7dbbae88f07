package domain

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is wrapped by every transition-validation failure so
// callers can classify rejections without matching on message text.
var ErrInvalidTransition = errors.New("invalid item status transition")

// itemTransitions is the adjacency table for vendor-driven item updates.
// DELIVERED, CANCELLED, and REFUNDED are terminal and have no entry.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:  {ItemStatusAccepted, ItemStatusCancelled},
	ItemStatusAccepted: {ItemStatusPacking, ItemStatusCancelled},
	ItemStatusPacking:  {ItemStatusShipped, ItemStatusCancelled},
	ItemStatusShipped:  {ItemStatusDelivered, ItemStatusCancelled},
}

// CanTransition reports whether the adjacency table allows from → to.
func CanTransition(from, to ItemStatus) bool {
	return slices.Contains(itemTransitions[from], to)
}

// ValidateItemTransition checks a proposed item status change against the
// fulfilment state machine. The returned error wraps ErrInvalidTransition
// and carries the human-readable rejection reason.
func ValidateItemTransition(from, to ItemStatus) error {
	if from == to {
		return fmt.Errorf("%w: unchanged", ErrInvalidTransition)
	}
	// Refunds are issued by the payments pipeline, never via fulfilment.
	if to == ItemStatusRefunded {
		return fmt.Errorf("%w: invalid transition from %s to %s", ErrInvalidTransition, from, to)
	}
	if from == ItemStatusDelivered && to == ItemStatusCancelled {
		return fmt.Errorf("%w: cannot cancel delivered item", ErrInvalidTransition)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: invalid transition from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}
