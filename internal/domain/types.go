package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ActorRole identifies which class of principal performed an action.
type ActorRole string

const (
	// ActorRoleBuyer marks actions taken by the purchasing customer.
	ActorRoleBuyer ActorRole = "buyer"
	// ActorRoleVendor marks actions taken by a marketplace vendor on their own line items.
	ActorRoleVendor ActorRole = "vendor"
	// ActorRoleAdmin marks privileged marketplace-operator actions.
	ActorRoleAdmin ActorRole = "admin"
	// ActorRoleSystem marks automated transitions (payment callbacks, schedulers).
	ActorRoleSystem ActorRole = "system"
)

// Actor carries the authenticated principal attached to a mutation.
type Actor struct {
	ID       string
	Role     ActorRole
	VendorID string
}

// PaymentStatus mirrors the externally driven payment signal on an order.
// The payments pipeline writes it; fulfilment only reads it.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order is the aggregate root for one customer purchase across vendors.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Currency      string
	Items         []OrderItem
	Total         int64
	// Revision increments on every persisted write and backs the
	// optimistic-concurrency guard on the order document.
	Revision    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// OrderItem is one vendor's portion of an order. Items are addressed by
// (VendorID, ProductID); they are created with the order and never removed,
// only transitioned to a terminal status.
type OrderItem struct {
	ProductID string
	VendorID  string
	Name      string
	SKU       string
	Quantity  int
	// UnitPrice and LineTotal are snapshots in minor currency units taken
	// at checkout; never recomputed from live product data.
	UnitPrice int64
	LineTotal int64
	Status    ItemStatus
	Note      *string
	Tracking  *ItemTracking
	UpdatedAt time.Time
}

// ItemTracking holds vendor-supplied carrier metadata, independent of status.
type ItemTracking struct {
	Carrier string
	Number  string
	URL     *string
}

// ItemRef addresses a single line item inside an order.
type ItemRef struct {
	ProductID string
	VendorID  string
}

// HistoryLevel distinguishes item-level from order-level history entries.
type HistoryLevel string

const (
	// HistoryLevelItem records a single line item's status change.
	HistoryLevelItem HistoryLevel = "ITEM"
	// HistoryLevelOrder records an aggregate order-status change.
	HistoryLevelOrder HistoryLevel = "ORDER"
)

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// StatusHistoryEntry is one immutable audit record of a status change.
// Entries are append-only; the sequence for an order is its canonical
// timeline, and replaying ToStatus values per item reconstructs the
// item's current status.
type StatusHistoryEntry struct {
	ID         string
	OrderID    string
	Level      HistoryLevel
	ProductID  *string
	VendorID   *string
	FromStatus string
	ToStatus   string
	ActorID    string
	ActorRole  ActorRole
	Note       *string
	CreatedAt  time.Time
}
