package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/remotetask/pkg/model"
)

// Factory opens a gateway for a resolved connection.
type Factory func(ctx context.Context, conn model.Connection) (Gateway, error)

// Registry maps service types to gateway factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[model.ServiceType]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[model.ServiceType]Factory),
		logger:    logger.With("component", "gateway-registry"),
	}
}

// DefaultRegistry returns a registry with the SageMaker and AppService
// gateways registered.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(model.ServiceSageMaker, func(ctx context.Context, conn model.Connection) (Gateway, error) {
		return NewSageMakerFromConnection(ctx, conn, logger)
	})
	r.Register(model.ServiceAppService, func(_ context.Context, conn model.Connection) (Gateway, error) {
		return NewAppServiceFromConnection(conn, logger), nil
	})
	return r
}

// Register adds or replaces the factory for a service type.
func (r *Registry) Register(t model.ServiceType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
	r.logger.Debug("gateway registered", "service", t)
}

// Open returns a gateway for conn's service.
func (r *Registry) Open(ctx context.Context, conn model.Connection) (Gateway, error) {
	r.mu.RLock()
	f, ok := r.factories[conn.Service]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no gateway registered for service %q", conn.Service)
	}
	return f(ctx, conn)
}
