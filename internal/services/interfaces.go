package services

import (
	"context"
	"time"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Actor              = domain.Actor
	ActorRole          = domain.ActorRole
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	ItemStatus         = domain.ItemStatus
	ItemRef            = domain.ItemRef
	ItemTracking       = domain.ItemTracking
	StatusHistoryEntry = domain.StatusHistoryEntry
	SystemHealthReport = domain.SystemHealthReport
)

// OrderListFilter re-exports the repository filter for handler use.
type OrderListFilter = repositories.OrderListFilter

// OrderService coordinates the order fulfilment state machine: vendor item
// transitions, admin overrides, bulk cancellation, and the derived aggregate
// status, with history recorded atomically alongside every mutation.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (OrderView, error)
	UpdateItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (OrderUpdateResult, error)
	UpdateItemTracking(ctx context.Context, cmd UpdateItemTrackingCommand) (OrderView, error)
	AdminSetStatus(ctx context.Context, cmd AdminSetStatusCommand) (OrderUpdateResult, error)
	AdminCancel(ctx context.Context, cmd AdminCancelCommand) (OrderUpdateResult, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (OrderView, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[OrderView], error)
	GetTimeline(ctx context.Context, query TimelineQuery) (domain.CursorPage[StatusHistoryEntry], error)
}

// SystemService aggregates operational health for liveness and readiness probes.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// OrderView is an order scoped to the requesting actor's visibility. Vendors
// see only their own line items; LegacyStatus carries the lowercase word for
// clients still reading the old field.
type OrderView struct {
	Order        Order
	LegacyStatus string
}

// OrderUpdateResult bundles the post-mutation view with the history deltas
// recorded by the mutation, for callers relaying them downstream.
type OrderUpdateResult struct {
	Order   OrderView
	History []StatusHistoryEntry
}

// CreateOrderCommand places a new order at checkout.
type CreateOrderCommand struct {
	CustomerID string
	Currency   string
	Items      []CreateOrderItem
	Actor      Actor
}

// CreateOrderItem is one priced line captured at checkout.
type CreateOrderItem struct {
	ProductID string
	VendorID  string
	Name      string
	SKU       string
	Quantity  int
	UnitPrice int64
}

// UpdateItemStatusCommand transitions one line item through the fulfilment
// state machine. VendorID scopes the item lookup; vendor actors may only
// supply their own vendor ID.
type UpdateItemStatusCommand struct {
	OrderID      string
	ProductID    string
	VendorID     string
	TargetStatus string
	Note         *string
	Actor        Actor
}

// UpdateItemTrackingCommand sets carrier metadata on one line item.
type UpdateItemTrackingCommand struct {
	OrderID   string
	ProductID string
	VendorID  string
	Carrier   string
	Number    string
	URL       *string
	Actor     Actor
}

// AdminSetStatusCommand overrides the aggregate order status directly.
type AdminSetStatusCommand struct {
	OrderID      string
	TargetStatus string
	Reason       string
	Actor        Actor
}

// AdminCancelCommand force-cancels eligible line items. An empty Items slice
// targets every item on the order.
type AdminCancelCommand struct {
	OrderID string
	Reason  string
	Items   []ItemRef
	Actor   Actor
}

// GetOrderQuery loads a single order within the actor's visibility.
type GetOrderQuery struct {
	OrderID string
	Actor   Actor
}

// ListOrdersQuery pages through orders visible to the actor, newest first.
type ListOrdersQuery struct {
	Actor      Actor
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

// TimelineQuery pages through an order's status history, newest first.
type TimelineQuery struct {
	OrderID    string
	Actor      Actor
	Pagination Pagination
}
