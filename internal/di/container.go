package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/novamart/api/internal/platform/config"
	"github.com/novamart/api/internal/repositories"
	"github.com/novamart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders services.OrderService
	System services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container assembly.
type Option func(*containerOptions)

type containerOptions struct {
	events services.OrderEventPublisher
	build  services.BuildInfo
}

// WithOrderEventPublisher attaches a publisher for order lifecycle events.
func WithOrderEventPublisher(pub services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = pub
	}
}

// WithBuildInfo supplies build metadata surfaced through the system service.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, options containerOptions) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		build := options.build
		if build.Environment == "" {
			build.Environment = cfg.Observability.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	ordersRepo := reg.Orders()
	historyRepo := reg.History()
	counterRepo := reg.Counters()
	if ordersRepo != nil && historyRepo != nil && counterRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:            ordersRepo,
			History:           historyRepo,
			Counters:          counterRepo,
			UnitOfWork:        reg,
			StrictStatusInput: cfg.Features.StrictStatusInput,
			Clock:             time.Now,
			Events:            options.events,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	return svc, nil
}
