package store

import (
	"context"

	"github.com/me/remotetask/pkg/model"
)

// Store defines the persistence layer for stored connections.
// Task attempts are never persisted; recovering them is the host's job.
type Store interface {
	// Connection CRUD
	PutConnection(ctx context.Context, conn *model.Connection) error
	GetConnection(ctx context.Context, name string) (*model.Connection, error)
	ListConnections(ctx context.Context) ([]*model.Connection, error)
	DeleteConnection(ctx context.Context, name string) (bool, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
