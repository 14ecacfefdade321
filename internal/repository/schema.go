package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaProperties = `
CREATE TABLE IF NOT EXISTS properties (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    county_id TEXT NOT NULL,
    county_name TEXT,
    parcel_number TEXT,
    address TEXT,
    property_type TEXT,
    total_due REAL,
    lot_size_acres REAL,
    total_score REAL,
    sale_date TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_properties_tenant ON properties(tenant_id);
CREATE INDEX IF NOT EXISTS idx_properties_county ON properties(tenant_id, county_id);
CREATE INDEX IF NOT EXISTS idx_properties_score ON properties(tenant_id, total_score);
`

const schemaAlertRules = `
CREATE TABLE IF NOT EXISTS alert_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    criteria TEXT NOT NULL,
    expression TEXT,
    frequency TEXT NOT NULL DEFAULT 'immediate',
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_alert_rules_tenant ON alert_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alert_rules_enabled ON alert_rules(tenant_id, enabled);
`

const schemaPropertyAlerts = `
CREATE TABLE IF NOT EXISTS property_alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    property_id TEXT NOT NULL,
    match_score REAL NOT NULL,
    quality TEXT NOT NULL,
    reasons TEXT,
    status TEXT NOT NULL DEFAULT 'new',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_property_alerts_tenant ON property_alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_property_alerts_rule ON property_alerts(tenant_id, rule_id);
CREATE INDEX IF NOT EXISTS idx_property_alerts_created ON property_alerts(tenant_id, rule_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProperties,
		schemaAlertRules,
		schemaPropertyAlerts,
	}
}
