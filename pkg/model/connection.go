package model

import (
	"log/slog"
	"time"
)

// Connection is resolved access configuration for a remote execution service.
type Connection struct {
	Name      string      `json:"name"`
	Service   ServiceType `json:"service"`
	Principal string      `json:"principal"`
	Secret    string      `json:"-"`
	Region    string      `json:"region,omitempty"`
	Endpoint  string      `json:"endpoint,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LogValue keeps the secret out of structured logs.
func (c Connection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", c.Name),
		slog.String("service", string(c.Service)),
		slog.String("principal", c.Principal),
		slog.String("region", c.Region),
		slog.String("endpoint", c.Endpoint),
	)
}
