package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/remotetask/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: an in-memory database is private to its connection,
	// and connection writes are rare.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// PutConnection inserts conn or replaces the stored connection of the same name.
// CreatedAt is preserved on replace.
func (s *SQLiteStore) PutConnection(ctx context.Context, conn *model.Connection) error {
	s.logger.Debug("sql", "op", "upsert", "table", "connections", "name", conn.Name)

	now := time.Now().UTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	if conn.Service == "" {
		conn.Service = model.ServiceSageMaker
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (name, service, principal, secret, region, endpoint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   service = excluded.service,
		   principal = excluded.principal,
		   secret = excluded.secret,
		   region = excluded.region,
		   endpoint = excluded.endpoint,
		   updated_at = excluded.updated_at`,
		conn.Name, string(conn.Service), conn.Principal, conn.Secret, conn.Region, conn.Endpoint,
		conn.CreatedAt.Format(time.RFC3339Nano), conn.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// GetConnection returns the named connection, or nil if it does not exist.
func (s *SQLiteStore) GetConnection(ctx context.Context, name string) (*model.Connection, error) {
	s.logger.Debug("sql", "op", "select", "table", "connections", "name", name)

	row := s.db.QueryRowContext(ctx,
		`SELECT name, service, principal, secret, region, endpoint, created_at, updated_at
		 FROM connections WHERE name = ?`, name)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ListConnections returns all stored connections ordered by name.
func (s *SQLiteStore) ListConnections(ctx context.Context) ([]*model.Connection, error) {
	s.logger.Debug("sql", "op", "list", "table", "connections")

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, service, principal, secret, region, endpoint, created_at, updated_at
		 FROM connections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// DeleteConnection removes the named connection and reports whether it existed.
func (s *SQLiteStore) DeleteConnection(ctx context.Context, name string) (bool, error) {
	s.logger.Debug("sql", "op", "delete", "table", "connections", "name", name)

	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*model.Connection, error) {
	var conn model.Connection
	var service, createdAt, updatedAt string
	if err := row.Scan(&conn.Name, &service, &conn.Principal, &conn.Secret, &conn.Region, &conn.Endpoint,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	conn.Service = model.ServiceType(service)
	conn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	conn.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &conn, nil
}
