package di

import (
	"context"
	"testing"
	"time"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/platform/config"
	"github.com/novamart/api/internal/repositories"
	"github.com/novamart/api/internal/services"
)

type stubRegistry struct {
	orders   repositories.OrderRepository
	history  repositories.HistoryRepository
	counters repositories.CounterRepository
	health   repositories.HealthRepository
	closed   bool
}

func (r *stubRegistry) Close(context.Context) error {
	r.closed = true
	return nil
}

func (r *stubRegistry) Orders() repositories.OrderRepository     { return r.orders }
func (r *stubRegistry) History() repositories.HistoryRepository  { return r.history }
func (r *stubRegistry) Counters() repositories.CounterRepository { return r.counters }
func (r *stubRegistry) Health() repositories.HealthRepository    { return r.health }

func (r *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubOrders struct{}

func (stubOrders) Insert(context.Context, domain.Order) error { return nil }
func (stubOrders) Update(context.Context, domain.Order) error { return nil }
func (stubOrders) FindByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, nil
}
func (stubOrders) List(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return domain.CursorPage[domain.Order]{}, nil
}

type stubHistory struct{}

func (stubHistory) Append(context.Context, domain.StatusHistoryEntry) error { return nil }
func (stubHistory) ListByOrder(context.Context, repositories.HistoryFilter) (domain.CursorPage[domain.StatusHistoryEntry], error) {
	return domain.CursorPage[domain.StatusHistoryEntry]{}, nil
}

type stubCounters struct{}

func (stubCounters) Next(context.Context, string, int64) (int64, error) { return 1, nil }
func (stubCounters) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubHealth struct{}

func (stubHealth) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

func TestNewContainerBuildsServices(t *testing.T) {
	reg := &stubRegistry{
		orders:   stubOrders{},
		history:  stubHistory{},
		counters: stubCounters{},
		health:   stubHealth{},
	}
	cfg := config.Config{
		Observability: config.ObservabilityConfig{Environment: "test"},
		Features:      config.FeatureFlags{StrictStatusInput: true},
	}

	container, err := NewContainer(context.Background(), cfg, reg, WithBuildInfo(services.BuildInfo{
		Version:   "1.0.0",
		StartedAt: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	if container.Services.Orders == nil {
		t.Error("expected order service to be constructed")
	}
	if container.Services.System == nil {
		t.Error("expected system service to be constructed")
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !reg.closed {
		t.Error("expected registry to be closed")
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatal("expected error when registry is nil")
	}
}

func TestNewContainerSkipsOrdersWithoutRepositories(t *testing.T) {
	reg := &stubRegistry{health: stubHealth{}}

	container, err := NewContainer(context.Background(), config.Config{}, reg)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	if container.Services.Orders != nil {
		t.Error("expected no order service without repositories")
	}
	if container.Services.System == nil {
		t.Error("expected system service from health repository")
	}
}
