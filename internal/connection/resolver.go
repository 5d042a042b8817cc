// Package connection turns connection references from task parameters into
// concrete access configuration for a remote execution service.
package connection

import (
	"context"
	"log/slog"

	"github.com/me/remotetask/pkg/model"
)

// Resolver resolves a connection reference. Implementations are side-effect
// free and safe for concurrent use; calling Resolve repeatedly with the same
// reference yields the same connection while the backing data is unchanged.
type Resolver interface {
	Resolve(ctx context.Context, ref model.ConnectionRef) (model.Connection, error)
}

// Lookup is the read side of the connection store.
type Lookup interface {
	GetConnection(ctx context.Context, name string) (*model.Connection, error)
}

// StoreResolver resolves named references against stored connections and
// inline references from their own fields.
type StoreResolver struct {
	lookup Lookup
	logger *slog.Logger
}

// NewStoreResolver creates a resolver backed by lookup. lookup may be nil, in
// which case only inline references resolve.
func NewStoreResolver(lookup Lookup, logger *slog.Logger) *StoreResolver {
	return &StoreResolver{
		lookup: lookup,
		logger: logger.With("component", "connection-resolver"),
	}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, ref model.ConnectionRef) (model.Connection, error) {
	service := ref.Service
	if service == "" {
		service = model.ServiceSageMaker
	}
	if ref.IsInline() {
		return resolveInline(ref, service)
	}

	if r.lookup == nil {
		return model.Connection{}, model.Errorf(model.KindConnectionResolution,
			"connection %q: no connection store configured", ref.Name)
	}
	stored, err := r.lookup.GetConnection(ctx, ref.Name)
	if err != nil {
		return model.Connection{}, model.NewTaskError(model.KindConnectionResolution, "lookup "+ref.Name, err)
	}
	if stored == nil {
		return model.Connection{}, model.Errorf(model.KindConnectionResolution,
			"connection %q does not exist", ref.Name)
	}

	if stored.Service != service {
		return model.Connection{}, model.Errorf(model.KindConnectionResolution,
			"connection %q is for service %s, task targets %s", ref.Name, stored.Service, service)
	}

	conn := *stored
	// Inline locality hints override the stored ones.
	if ref.Region != "" {
		conn.Region = ref.Region
	}
	if ref.Endpoint != "" {
		conn.Endpoint = ref.Endpoint
	}
	if err := validate(conn); err != nil {
		return model.Connection{}, err
	}

	r.logger.Debug("connection resolved", "connection", conn)
	return conn, nil
}

func resolveInline(ref model.ConnectionRef, service model.ServiceType) (model.Connection, error) {
	conn := model.Connection{
		Name:      "inline",
		Service:   service,
		Principal: ref.Principal,
		Secret:    ref.Secret,
		Region:    ref.Region,
		Endpoint:  ref.Endpoint,
	}
	if err := validate(conn); err != nil {
		return model.Connection{}, err
	}
	return conn, nil
}

func validate(conn model.Connection) error {
	if conn.Principal == "" {
		return model.Errorf(model.KindConnectionResolution, "connection %q: principal is empty", conn.Name)
	}
	if conn.Secret == "" {
		return model.Errorf(model.KindConnectionResolution, "connection %q: secret is empty", conn.Name)
	}
	if conn.Service == model.ServiceSageMaker && conn.Region == "" {
		return model.Errorf(model.KindConnectionResolution, "connection %q: region is required", conn.Name)
	}
	if conn.Service == model.ServiceAppService && conn.Endpoint == "" {
		return model.Errorf(model.KindConnectionResolution, "connection %q: endpoint is required", conn.Name)
	}
	return nil
}
