package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/internal/definition"
	"github.com/me/remotetask/internal/gateway"
	"github.com/me/remotetask/internal/lifecycle"
	"github.com/me/remotetask/internal/store"
	"github.com/me/remotetask/internal/task"
	"github.com/me/remotetask/pkg/model"
)

// dbPath returns the configured store path, creating ~/.remotetask for the
// default location.
func dbPath() (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".remotetask")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "remotetask.db"), nil
}

// openStore opens and migrates the connection store.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	path, err := dbPath()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Debug("database ready", "path", path)
	return st, nil
}

// definitionLoader returns a loader that can read s3:// definitions with the
// ambient AWS credentials. Without them only inline and file definitions work.
func definitionLoader(ctx context.Context) *definition.Loader {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Debug("s3 definitions disabled", "error", err)
		return &definition.Loader{}
	}
	return &definition.Loader{Fetcher: definition.NewS3Fetcher(s3.NewFromConfig(awsCfg))}
}

// taskDeps wires the task dependencies over a connection store.
func taskDeps(ctx context.Context, st store.Store) task.Deps {
	var lookup connection.Lookup
	if st != nil {
		lookup = st
	}
	return task.Deps{
		Resolver:   connection.NewStoreResolver(lookup, logger),
		Gateways:   gateway.DefaultRegistry(logger),
		Loader:     definitionLoader(ctx),
		Controller: cfg.Controller,
		Emitter:    lifecycle.LogEmitter{Logger: logger.With("component", "trace")},
		Logger:     logger,
	}
}

// openGateway resolves a stored connection by name and opens the gateway
// for the connection's service.
func openGateway(ctx context.Context, name string) (gateway.Gateway, model.Connection, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, model.Connection{}, err
	}
	defer st.Close()

	stored, err := st.GetConnection(ctx, name)
	if err != nil {
		return nil, model.Connection{}, err
	}
	if stored == nil {
		return nil, model.Connection{}, fmt.Errorf("connection %q does not exist", name)
	}
	conn, err := connection.NewStoreResolver(st, logger).Resolve(ctx, model.ConnectionRef{Name: name, Service: stored.Service})
	if err != nil {
		return nil, model.Connection{}, err
	}
	gw, err := gateway.DefaultRegistry(logger).Open(ctx, conn)
	if err != nil {
		return nil, model.Connection{}, err
	}
	return gw, conn, nil
}
