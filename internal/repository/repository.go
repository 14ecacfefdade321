// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProperty stores a property with tenant isolation. Saving an existing
// ID updates the record (county feeds re-scrape the same parcels).
func (r *SQLRepository) SaveProperty(ctx context.Context, tenantID string, p *domain.Property) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(p.Metadata)

	query := `
		INSERT INTO properties (
			id, tenant_id, county_id, county_name, parcel_number, address,
			property_type, total_due, lot_size_acres, total_score, sale_date,
			created_at, updated_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			county_name = excluded.county_name,
			parcel_number = excluded.parcel_number,
			address = excluded.address,
			property_type = excluded.property_type,
			total_due = excluded.total_due,
			lot_size_acres = excluded.lot_size_acres,
			total_score = excluded.total_score,
			sale_date = excluded.sale_date,
			updated_at = excluded.updated_at,
			metadata = excluded.metadata
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.CountyID, p.CountyName, p.ParcelNumber, p.Address,
		p.PropertyType, p.TotalDue, p.LotSizeAcres, p.TotalScore, p.SaleDate,
		p.CreatedAt, p.UpdatedAt, string(metadata),
	)
	return err
}

// GetProperty retrieves a property by ID with tenant isolation.
func (r *SQLRepository) GetProperty(ctx context.Context, tenantID string, propertyID string) (*domain.Property, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, county_id, county_name, parcel_number, address,
			   property_type, total_due, lot_size_acres, total_score, sale_date,
			   created_at, updated_at, metadata
		FROM properties
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, propertyID)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListProperties retrieves properties for a tenant, optionally restricted
// to one county.
func (r *SQLRepository) ListProperties(ctx context.Context, tenantID string, countyID string) ([]*domain.Property, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, county_id, county_name, parcel_number, address,
			   property_type, total_due, lot_size_acres, total_score, sale_date,
			   created_at, updated_at, metadata
		FROM properties
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if countyID != "" {
		query += " AND county_id = ?"
		args = append(args, countyID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []*domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}

	return properties, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*domain.Property, error) {
	var p domain.Property
	var countyName, parcelNumber, address, propertyType, metadata sql.NullString
	var totalDue, lotSizeAcres, totalScore sql.NullFloat64
	var saleDate sql.NullTime

	err := row.Scan(
		&p.ID, &p.TenantID, &p.CountyID, &countyName, &parcelNumber, &address,
		&propertyType, &totalDue, &lotSizeAcres, &totalScore, &saleDate,
		&p.CreatedAt, &p.UpdatedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	p.CountyName = countyName.String
	p.ParcelNumber = parcelNumber.String
	p.Address = address.String
	if propertyType.Valid {
		p.PropertyType = &propertyType.String
	}
	if totalDue.Valid {
		p.TotalDue = &totalDue.Float64
	}
	if lotSizeAcres.Valid {
		p.LotSizeAcres = &lotSizeAcres.Float64
	}
	if totalScore.Valid {
		p.TotalScore = &totalScore.Float64
	}
	if saleDate.Valid {
		p.SaleDate = &saleDate.Time
	}
	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &p.Metadata)
	}

	return &p, nil
}

// SaveAlertRule stores an alert rule with tenant isolation, updating in
// place when the rule already exists.
func (r *SQLRepository) SaveAlertRule(ctx context.Context, tenantID string, rule *domain.AlertRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	criteria, _ := json.Marshal(rule.Criteria)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO alert_rules (
			id, tenant_id, name, description, criteria, expression, frequency, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			criteria = excluded.criteria,
			expression = excluded.expression,
			frequency = excluded.frequency,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		string(criteria), rule.Expression, string(rule.Frequency), enabled,
		now, now,
	)
	return err
}

// GetAlertRule retrieves an enabled alert rule with tenant isolation.
func (r *SQLRepository) GetAlertRule(ctx context.Context, tenantID string, ruleID string) (*domain.AlertRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, criteria, expression, frequency, enabled, created_at, updated_at
		FROM alert_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID)
	rule, err := scanAlertRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListAlertRules retrieves all enabled alert rules for a tenant.
func (r *SQLRepository) ListAlertRules(ctx context.Context, tenantID string) ([]*domain.AlertRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, criteria, expression, frequency, enabled, created_at, updated_at
		FROM alert_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanAlertRule(row rowScanner) (*domain.AlertRule, error) {
	var rule domain.AlertRule
	var description, expression sql.NullString
	var criteria, frequency string
	var enabled int

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&criteria, &expression, &frequency, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Expression = expression.String
	rule.Frequency = domain.AlertFrequency(frequency)
	rule.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(criteria), &rule.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse rule criteria: %w", err)
	}

	return &rule, nil
}

// DeleteAlertRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteAlertRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE alert_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SavePropertyAlert stores an alert record with tenant isolation.
func (r *SQLRepository) SavePropertyAlert(ctx context.Context, tenantID string, alert *domain.PropertyAlert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(alert.Reasons)

	query := `
		INSERT INTO property_alerts (
			id, tenant_id, rule_id, property_id, match_score, quality, reasons, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.RuleID, alert.PropertyID,
		alert.MatchScore, alert.Quality, string(reasons), alert.Status,
		alert.CreatedAt,
	)
	return err
}

// GetPropertyAlert retrieves an alert by ID with tenant isolation.
func (r *SQLRepository) GetPropertyAlert(ctx context.Context, tenantID string, alertID string) (*domain.PropertyAlert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, rule_id, property_id, match_score, quality, reasons, status, created_at
		FROM property_alerts
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, alertID)
	alert, err := scanPropertyAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return alert, err
}

// ListPropertyAlerts retrieves alerts for a tenant, newest first,
// optionally restricted to one rule.
func (r *SQLRepository) ListPropertyAlerts(ctx context.Context, tenantID string, ruleID string) ([]*domain.PropertyAlert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, rule_id, property_id, match_score, quality, reasons, status, created_at
		FROM property_alerts
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if ruleID != "" {
		query += " AND rule_id = ?"
		args = append(args, ruleID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.PropertyAlert
	for rows.Next() {
		alert, err := scanPropertyAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// CountPropertyAlerts counts alerts raised for a rule since a point in
// time. Used by the throttle service when no cache counter is available.
func (r *SQLRepository) CountPropertyAlerts(ctx context.Context, tenantID string, ruleID string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM property_alerts
		WHERE tenant_id = ? AND rule_id = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func scanPropertyAlert(row rowScanner) (*domain.PropertyAlert, error) {
	var alert domain.PropertyAlert
	var reasons sql.NullString

	err := row.Scan(
		&alert.ID, &alert.TenantID, &alert.RuleID, &alert.PropertyID,
		&alert.MatchScore, &alert.Quality, &reasons, &alert.Status,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reasons.Valid && reasons.String != "" {
		json.Unmarshal([]byte(reasons.String), &alert.Reasons)
	}

	return &alert, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
