package repositories

import (
	"context"
	"time"

	domain "github.com/novamart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	History() HistoryRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork runs fn inside a storage transaction when the backend supports one.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates. Update enforces the
// optimistic-concurrency guard: it compares the stored revision against
// order.Revision and returns a RepositoryError with IsConflict when another
// writer committed first.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// HistoryRepository stores the append-only status timeline. Entries are
// never updated or deleted through this interface.
type HistoryRepository interface {
	Append(ctx context.Context, entry domain.StatusHistoryEntry) error
	ListByOrder(ctx context.Context, filter HistoryFilter) (domain.CursorPage[domain.StatusHistoryEntry], error)
}

// CounterRepository issues monotonic sequence values for order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository reports dependency status for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter narrows order listings to a caller's visibility scope.
type OrderListFilter struct {
	CustomerID string
	VendorID   string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// HistoryFilter selects timeline entries for one order, optionally scoped to
// a single vendor's items. Results are always newest-first.
type HistoryFilter struct {
	OrderID    string
	VendorID   string
	Pagination domain.Pagination
}

// CounterConfig captures optional counter behaviour overrides.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
