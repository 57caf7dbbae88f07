package domain

import "strings"

// ItemStatus enumerates the canonical fulfilment states of one line item.
type ItemStatus string

const (
	// ItemStatusPending indicates the item awaits vendor acceptance.
	ItemStatusPending ItemStatus = "PENDING"
	// ItemStatusAccepted indicates the vendor has confirmed the item.
	ItemStatusAccepted ItemStatus = "ACCEPTED"
	// ItemStatusPacking indicates the vendor is preparing the item for dispatch.
	ItemStatusPacking ItemStatus = "PACKING"
	// ItemStatusShipped indicates the item has been handed to a carrier.
	ItemStatusShipped ItemStatus = "SHIPPED"
	// ItemStatusDelivered indicates the carrier confirmed delivery.
	ItemStatusDelivered ItemStatus = "DELIVERED"
	// ItemStatusCancelled indicates the item was cancelled before delivery.
	ItemStatusCancelled ItemStatus = "CANCELLED"
	// ItemStatusRefunded indicates the payments pipeline refunded the item.
	ItemStatusRefunded ItemStatus = "REFUNDED"
)

// OrderStatus enumerates the aggregate states shown to the customer.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "PENDING"
	OrderStatusProcessing         OrderStatus = "PROCESSING"
	OrderStatusPartiallyShipped   OrderStatus = "PARTIALLY_SHIPPED"
	OrderStatusShipped            OrderStatus = "SHIPPED"
	OrderStatusPartiallyDelivered OrderStatus = "PARTIALLY_DELIVERED"
	OrderStatusDelivered          OrderStatus = "DELIVERED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
	OrderStatusRefunded           OrderStatus = "REFUNDED"
)

// legacyItemAliases maps historic lowercase spellings still emitted by older
// storefront clients onto the canonical vocabulary.
var legacyItemAliases = map[string]ItemStatus{
	"pending":    ItemStatusPending,
	"confirmed":  ItemStatusAccepted,
	"processing": ItemStatusPacking,
	"shipped":    ItemStatusShipped,
	"delivered":  ItemStatusDelivered,
	"cancelled":  ItemStatusCancelled,
	"refunded":   ItemStatusRefunded,
}

var canonicalItemStatuses = map[ItemStatus]struct{}{
	ItemStatusPending:   {},
	ItemStatusAccepted:  {},
	ItemStatusPacking:   {},
	ItemStatusShipped:   {},
	ItemStatusDelivered: {},
	ItemStatusCancelled: {},
	ItemStatusRefunded:  {},
}

// legacyOrderAliases accepts the historic lowercase order words. The item
// aliases "confirmed" and "processing" both land on PROCESSING here because
// the old order vocabulary had no in-between states.
var legacyOrderAliases = map[string]OrderStatus{
	"pending":    OrderStatusPending,
	"confirmed":  OrderStatusProcessing,
	"processing": OrderStatusProcessing,
	"shipped":    OrderStatusShipped,
	"delivered":  OrderStatusDelivered,
	"cancelled":  OrderStatusCancelled,
	"refunded":   OrderStatusRefunded,
}

var canonicalOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:            {},
	OrderStatusProcessing:         {},
	OrderStatusPartiallyShipped:   {},
	OrderStatusShipped:            {},
	OrderStatusPartiallyDelivered: {},
	OrderStatusDelivered:          {},
	OrderStatusCancelled:          {},
	OrderStatusRefunded:           {},
}

// ParseItemStatus resolves raw input to a canonical item status. It accepts
// the canonical value in any case, or a legacy lowercase alias, and reports
// whether the input was recognized.
func ParseItemStatus(raw string) (ItemStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ItemStatusPending, false
	}
	candidate := ItemStatus(strings.ToUpper(trimmed))
	if _, ok := canonicalItemStatuses[candidate]; ok {
		return candidate, true
	}
	if status, ok := legacyItemAliases[strings.ToLower(trimmed)]; ok {
		return status, true
	}
	return ItemStatusPending, false
}

// NormalizeItemStatus resolves raw input like ParseItemStatus but collapses
// unrecognized input to PENDING (the documented permissive default).
// Idempotent: normalizing an already-normalized value is a no-op.
func NormalizeItemStatus(raw string) ItemStatus {
	status, _ := ParseItemStatus(raw)
	return status
}

// ParseOrderStatus resolves raw input to a canonical order status, accepting
// the same legacy aliases as ParseItemStatus plus the partial-progress
// states, and reports whether the input was recognized.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OrderStatusPending, false
	}
	candidate := OrderStatus(strings.ToUpper(trimmed))
	if _, ok := canonicalOrderStatuses[candidate]; ok {
		return candidate, true
	}
	if status, ok := legacyOrderAliases[strings.ToLower(trimmed)]; ok {
		return status, true
	}
	return OrderStatusPending, false
}

// NormalizeOrderStatus resolves raw input like ParseOrderStatus with the
// permissive PENDING default for unrecognized input.
func NormalizeOrderStatus(raw string) OrderStatus {
	status, _ := ParseOrderStatus(raw)
	return status
}

// legacyOrderWords is the fixed table feeding systems that still read the
// old single lowercase status word. Partial states collapse onto the word
// of the milestone they have partially reached.
var legacyOrderWords = map[OrderStatus]string{
	OrderStatusPending:            "pending",
	OrderStatusProcessing:         "processing",
	OrderStatusPartiallyShipped:   "shipped",
	OrderStatusShipped:            "shipped",
	OrderStatusPartiallyDelivered: "delivered",
	OrderStatusDelivered:          "delivered",
	OrderStatusCancelled:          "cancelled",
	OrderStatusRefunded:           "refunded",
}

// LegacyOrderStatus maps a canonical order status to the legacy lowercase
// word. The word is produced at the API boundary only; it is never stored.
func LegacyOrderStatus(status OrderStatus) string {
	if word, ok := legacyOrderWords[status]; ok {
		return word
	}
	return "pending"
}

// IsTerminalItemStatus reports whether an item status admits no further
// transitions.
func IsTerminalItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusDelivered, ItemStatusCancelled, ItemStatusRefunded:
		return true
	default:
		return false
	}
}
