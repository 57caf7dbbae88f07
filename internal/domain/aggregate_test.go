package domain

import "testing"

func TestAggregateOrderStatusPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		items []ItemStatus
		want  OrderStatus
	}{
		{name: "empty", items: nil, want: OrderStatusPending},
		{name: "all refunded", items: []ItemStatus{ItemStatusRefunded, ItemStatusRefunded}, want: OrderStatusRefunded},
		{name: "all cancelled", items: []ItemStatus{ItemStatusCancelled, ItemStatusCancelled}, want: OrderStatusCancelled},
		{name: "all delivered", items: []ItemStatus{ItemStatusDelivered, ItemStatusDelivered}, want: OrderStatusDelivered},
		{name: "delivered beats pending", items: []ItemStatus{ItemStatusDelivered, ItemStatusPending}, want: OrderStatusPartiallyDelivered},
		{name: "delivered beats shipped", items: []ItemStatus{ItemStatusDelivered, ItemStatusShipped}, want: OrderStatusPartiallyDelivered},
		{name: "all shipped", items: []ItemStatus{ItemStatusShipped, ItemStatusShipped}, want: OrderStatusShipped},
		{name: "shipped beats processing", items: []ItemStatus{ItemStatusShipped, ItemStatusPacking}, want: OrderStatusPartiallyShipped},
		{name: "shipped beats pending", items: []ItemStatus{ItemStatusShipped, ItemStatusPending}, want: OrderStatusPartiallyShipped},
		{name: "accepted means processing", items: []ItemStatus{ItemStatusAccepted, ItemStatusPending}, want: OrderStatusProcessing},
		{name: "packing means processing", items: []ItemStatus{ItemStatusPacking, ItemStatusCancelled}, want: OrderStatusProcessing},
		{name: "pending and cancelled", items: []ItemStatus{ItemStatusPending, ItemStatusCancelled}, want: OrderStatusPending},
		{name: "refunded and cancelled", items: []ItemStatus{ItemStatusRefunded, ItemStatusCancelled}, want: OrderStatusPending},
		{name: "single pending", items: []ItemStatus{ItemStatusPending}, want: OrderStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AggregateOrderStatus(tc.items); got != tc.want {
				t.Fatalf("AggregateOrderStatus(%v) = %s, want %s", tc.items, got, tc.want)
			}
		})
	}
}

func TestAggregateOrderStatusOrderInsensitive(t *testing.T) {
	items := []ItemStatus{ItemStatusDelivered, ItemStatusPending, ItemStatusShipped, ItemStatusCancelled}
	want := AggregateOrderStatus(items)

	// Rotate through every cyclic permutation; the reduction must not care.
	for i := 1; i < len(items); i++ {
		rotated := append(append([]ItemStatus{}, items[i:]...), items[:i]...)
		if got := AggregateOrderStatus(rotated); got != want {
			t.Fatalf("AggregateOrderStatus(%v) = %s, want %s", rotated, got, want)
		}
	}
}

func TestAggregateFromItems(t *testing.T) {
	items := []OrderItem{
		{ProductID: "prod_1", VendorID: "ven_a", Status: ItemStatusShipped},
		{ProductID: "prod_2", VendorID: "ven_b", Status: ItemStatusShipped},
	}
	if got := AggregateFromItems(items); got != OrderStatusShipped {
		t.Fatalf("AggregateFromItems = %s, want SHIPPED", got)
	}
}
