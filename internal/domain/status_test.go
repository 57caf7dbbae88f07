package domain

import "testing"

func TestNormalizeItemStatus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want ItemStatus
	}{
		{name: "canonical", raw: "SHIPPED", want: ItemStatusShipped},
		{name: "lowercase canonical", raw: "packing", want: ItemStatusPacking},
		{name: "mixed case", raw: "Delivered", want: ItemStatusDelivered},
		{name: "surrounding whitespace", raw: "  ACCEPTED \n", want: ItemStatusAccepted},
		{name: "legacy confirmed", raw: "confirmed", want: ItemStatusAccepted},
		{name: "legacy processing", raw: "processing", want: ItemStatusPacking},
		{name: "legacy cancelled", raw: "cancelled", want: ItemStatusCancelled},
		{name: "unknown collapses to pending", raw: "on_hold", want: ItemStatusPending},
		{name: "empty collapses to pending", raw: "", want: ItemStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeItemStatus(tc.raw)
			if got != tc.want {
				t.Fatalf("NormalizeItemStatus(%q) = %s, want %s", tc.raw, got, tc.want)
			}
			if again := NormalizeItemStatus(string(got)); again != got {
				t.Fatalf("normalization not idempotent: %s became %s", got, again)
			}
		})
	}
}

func TestParseItemStatusRejectsUnknown(t *testing.T) {
	if _, ok := ParseItemStatus("on_hold"); ok {
		t.Fatalf("expected on_hold to be unrecognized")
	}
	if status, ok := ParseItemStatus("confirmed"); !ok || status != ItemStatusAccepted {
		t.Fatalf("ParseItemStatus(confirmed) = %s, %t", status, ok)
	}
}

func TestNormalizeOrderStatus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want OrderStatus
	}{
		{name: "canonical partial", raw: "PARTIALLY_SHIPPED", want: OrderStatusPartiallyShipped},
		{name: "lowercase partial", raw: "partially_delivered", want: OrderStatusPartiallyDelivered},
		{name: "legacy confirmed", raw: "confirmed", want: OrderStatusProcessing},
		{name: "legacy processing", raw: "processing", want: OrderStatusProcessing},
		{name: "garbage collapses to pending", raw: "???", want: OrderStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeOrderStatus(tc.raw)
			if got != tc.want {
				t.Fatalf("NormalizeOrderStatus(%q) = %s, want %s", tc.raw, got, tc.want)
			}
			if again := NormalizeOrderStatus(string(got)); again != got {
				t.Fatalf("normalization not idempotent: %s became %s", got, again)
			}
		})
	}
}

func TestLegacyOrderStatus(t *testing.T) {
	cases := map[OrderStatus]string{
		OrderStatusPending:            "pending",
		OrderStatusProcessing:         "processing",
		OrderStatusPartiallyShipped:   "shipped",
		OrderStatusShipped:            "shipped",
		OrderStatusPartiallyDelivered: "delivered",
		OrderStatusDelivered:          "delivered",
		OrderStatusCancelled:          "cancelled",
		OrderStatusRefunded:           "refunded",
		OrderStatus("MYSTERY"):        "pending",
	}
	for status, want := range cases {
		if got := LegacyOrderStatus(status); got != want {
			t.Fatalf("LegacyOrderStatus(%s) = %q, want %q", status, got, want)
		}
	}
}
