package domain

// AggregateOrderStatus reduces the multiset of item statuses to the single
// customer-facing order status. Rules are evaluated top to bottom and the
// first match wins; the ordering is load-bearing (one delivered item plus
// one pending item is PARTIALLY_DELIVERED, not PROCESSING). The result
// never depends on item order.
func AggregateOrderStatus(statuses []ItemStatus) OrderStatus {
	if len(statuses) == 0 {
		return OrderStatusPending
	}

	counts := make(map[ItemStatus]int, len(statuses))
	for _, status := range statuses {
		counts[status]++
	}
	total := len(statuses)

	switch {
	case counts[ItemStatusRefunded] == total:
		return OrderStatusRefunded
	case counts[ItemStatusCancelled] == total:
		return OrderStatusCancelled
	case counts[ItemStatusDelivered] == total:
		return OrderStatusDelivered
	case counts[ItemStatusDelivered] > 0:
		return OrderStatusPartiallyDelivered
	case counts[ItemStatusShipped] == total:
		return OrderStatusShipped
	case counts[ItemStatusShipped] > 0:
		return OrderStatusPartiallyShipped
	case counts[ItemStatusAccepted] > 0 || counts[ItemStatusPacking] > 0:
		return OrderStatusProcessing
	case counts[ItemStatusPending]+counts[ItemStatusCancelled] == total:
		if counts[ItemStatusPending] > 0 {
			return OrderStatusPending
		}
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

// AggregateFromItems is a convenience wrapper over AggregateOrderStatus for
// callers holding the full line-item slice.
func AggregateFromItems(items []OrderItem) OrderStatus {
	statuses := make([]ItemStatus, 0, len(items))
	for _, item := range items {
		statuses = append(statuses, item.Status)
	}
	return AggregateOrderStatus(statuses)
}
