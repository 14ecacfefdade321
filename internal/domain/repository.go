// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Property operations
	SaveProperty(ctx context.Context, tenantID string, p *Property) error
	GetProperty(ctx context.Context, tenantID string, propertyID string) (*Property, error)
	ListProperties(ctx context.Context, tenantID string, countyID string) ([]*Property, error)

	// Alert rule operations
	SaveAlertRule(ctx context.Context, tenantID string, rule *AlertRule) error
	GetAlertRule(ctx context.Context, tenantID string, ruleID string) (*AlertRule, error)
	ListAlertRules(ctx context.Context, tenantID string) ([]*AlertRule, error)
	DeleteAlertRule(ctx context.Context, tenantID string, ruleID string) error

	// Property alert operations
	SavePropertyAlert(ctx context.Context, tenantID string, alert *PropertyAlert) error
	GetPropertyAlert(ctx context.Context, tenantID string, alertID string) (*PropertyAlert, error)
	ListPropertyAlerts(ctx context.Context, tenantID string, ruleID string) ([]*PropertyAlert, error)
	CountPropertyAlerts(ctx context.Context, tenantID string, ruleID string, since time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
