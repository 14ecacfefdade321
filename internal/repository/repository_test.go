package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kestrel-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestPropertyRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	now := time.Now().UTC().Truncate(time.Second)
	prop := &domain.Property{
		ID:           "prop-001",
		TenantID:     tenantID,
		CountyID:     "county-blair",
		CountyName:   "Blair County, PA",
		ParcelNumber: "01-0123-456",
		PropertyType: sptr("vacant_land"),
		TotalDue:     fptr(4250.75),
		LotSizeAcres: fptr(0.33),
		TotalScore:   fptr(92),
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     map[string]interface{}{"source": "county-feed"},
	}

	if err := repo.SaveProperty(ctx, tenantID, prop); err != nil {
		t.Fatalf("SaveProperty failed: %v", err)
	}

	got, err := repo.GetProperty(ctx, tenantID, "prop-001")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}

	if got.CountyID != "county-blair" || got.CountyName != "Blair County, PA" {
		t.Errorf("county fields mismatch: %+v", got)
	}
	if got.TotalDue == nil || *got.TotalDue != 4250.75 {
		t.Errorf("expected totalDue 4250.75, got %v", got.TotalDue)
	}
	if got.PropertyType == nil || *got.PropertyType != "vacant_land" {
		t.Errorf("expected propertyType vacant_land, got %v", got.PropertyType)
	}
	if got.Metadata["source"] != "county-feed" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
}

func TestPropertyNullableFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	now := time.Now().UTC()
	prop := &domain.Property{
		ID:        "prop-sparse",
		TenantID:  tenantID,
		CountyID:  "county-blair",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.SaveProperty(ctx, tenantID, prop); err != nil {
		t.Fatalf("SaveProperty failed: %v", err)
	}

	got, err := repo.GetProperty(ctx, tenantID, "prop-sparse")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}

	if got.PropertyType != nil || got.TotalDue != nil || got.LotSizeAcres != nil || got.TotalScore != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
}

func TestPropertyUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	now := time.Now().UTC()
	prop := &domain.Property{
		ID:        "prop-001",
		TenantID:  tenantID,
		CountyID:  "county-blair",
		TotalDue:  fptr(5000),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.SaveProperty(ctx, tenantID, prop); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	prop.TotalDue = fptr(5500)
	if err := repo.SaveProperty(ctx, tenantID, prop); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, _ := repo.GetProperty(ctx, tenantID, "prop-001")
	if got.TotalDue == nil || *got.TotalDue != 5500 {
		t.Errorf("expected updated totalDue 5500, got %v", got.TotalDue)
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	prop := &domain.Property{
		ID:        "prop-001",
		TenantID:  "tenant-a",
		CountyID:  "county-blair",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.SaveProperty(ctx, "tenant-a", prop); err != nil {
		t.Fatalf("SaveProperty failed: %v", err)
	}

	if _, err := repo.GetProperty(ctx, "tenant-b", "prop-001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong tenant, got %v", err)
	}
}

func TestListPropertiesByCounty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	now := time.Now().UTC()
	for _, p := range []*domain.Property{
		{ID: "p-1", CountyID: "county-blair", CreatedAt: now, UpdatedAt: now},
		{ID: "p-2", CountyID: "county-cambria", CreatedAt: now, UpdatedAt: now},
		{ID: "p-3", CountyID: "county-blair", CreatedAt: now, UpdatedAt: now},
	} {
		if err := repo.SaveProperty(ctx, tenantID, p); err != nil {
			t.Fatalf("SaveProperty failed: %v", err)
		}
	}

	blair, err := repo.ListProperties(ctx, tenantID, "county-blair")
	if err != nil {
		t.Fatalf("ListProperties failed: %v", err)
	}
	if len(blair) != 2 {
		t.Errorf("expected 2 blair properties, got %d", len(blair))
	}

	all, err := repo.ListProperties(ctx, tenantID, "")
	if err != nil {
		t.Fatalf("ListProperties failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 properties, got %d", len(all))
	}
}

func TestAlertRuleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	rule := &domain.AlertRule{
		ID:       "rule-001",
		TenantID: tenantID,
		Name:     "Blair County bargains",
		Criteria: domain.MatchCriteria{
			ScoreThreshold: fptr(80),
			CountyIDs:      []string{"county-blair"},
			MaxBid:         fptr(10000),
		},
		Expression: "total_due < 8000.0",
		Frequency:  domain.FrequencyDaily,
		Enabled:    true,
	}

	if err := repo.SaveAlertRule(ctx, tenantID, rule); err != nil {
		t.Fatalf("SaveAlertRule failed: %v", err)
	}

	got, err := repo.GetAlertRule(ctx, tenantID, "rule-001")
	if err != nil {
		t.Fatalf("GetAlertRule failed: %v", err)
	}

	if got.Name != "Blair County bargains" {
		t.Errorf("unexpected name %q", got.Name)
	}
	if got.Criteria.ScoreThreshold == nil || *got.Criteria.ScoreThreshold != 80 {
		t.Errorf("criteria not preserved: %+v", got.Criteria)
	}
	if len(got.Criteria.CountyIDs) != 1 || got.Criteria.CountyIDs[0] != "county-blair" {
		t.Errorf("countyIds not preserved: %v", got.Criteria.CountyIDs)
	}
	if got.Expression != "total_due < 8000.0" {
		t.Errorf("expression not preserved: %q", got.Expression)
	}
	if got.Frequency != domain.FrequencyDaily {
		t.Errorf("frequency not preserved: %q", got.Frequency)
	}
}

func TestDeleteAlertRule(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	rule := &domain.AlertRule{
		ID:        "rule-001",
		TenantID:  tenantID,
		Name:      "Doomed rule",
		Criteria:  domain.MatchCriteria{MaxBid: fptr(5000)},
		Frequency: domain.FrequencyImmediate,
		Enabled:   true,
	}
	if err := repo.SaveAlertRule(ctx, tenantID, rule); err != nil {
		t.Fatalf("SaveAlertRule failed: %v", err)
	}

	if err := repo.DeleteAlertRule(ctx, tenantID, "rule-001"); err != nil {
		t.Fatalf("DeleteAlertRule failed: %v", err)
	}

	// Soft-deleted rules disappear from reads
	if _, err := repo.GetAlertRule(ctx, tenantID, "rule-001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	rules, _ := repo.ListAlertRules(ctx, tenantID)
	if len(rules) != 0 {
		t.Errorf("expected 0 rules after delete, got %d", len(rules))
	}

	if err := repo.DeleteAlertRule(ctx, tenantID, "rule-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing rule, got %v", err)
	}
}

func TestPropertyAlerts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	now := time.Now().UTC()
	alert := &domain.PropertyAlert{
		ID:         "alert-001",
		TenantID:   tenantID,
		RuleID:     "rule-001",
		PropertyID: "prop-001",
		MatchScore: 87.5,
		Quality:    "Excellent match",
		Reasons:    []string{"Investment score 92 meets threshold of 80"},
		Status:     domain.AlertStatusNew,
		CreatedAt:  now,
	}

	if err := repo.SavePropertyAlert(ctx, tenantID, alert); err != nil {
		t.Fatalf("SavePropertyAlert failed: %v", err)
	}

	got, err := repo.GetPropertyAlert(ctx, tenantID, "alert-001")
	if err != nil {
		t.Fatalf("GetPropertyAlert failed: %v", err)
	}
	if got.MatchScore != 87.5 || got.Quality != "Excellent match" {
		t.Errorf("alert fields mismatch: %+v", got)
	}
	if len(got.Reasons) != 1 {
		t.Errorf("reasons not preserved: %v", got.Reasons)
	}

	list, err := repo.ListPropertyAlerts(ctx, tenantID, "rule-001")
	if err != nil {
		t.Fatalf("ListPropertyAlerts failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 alert, got %d", len(list))
	}

	count, err := repo.CountPropertyAlerts(ctx, tenantID, "rule-001", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountPropertyAlerts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	count, _ = repo.CountPropertyAlerts(ctx, tenantID, "rule-001", now.Add(time.Hour))
	if count != 0 {
		t.Errorf("expected count 0 outside window, got %d", count)
	}
}

func TestRequiresTenantID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveProperty(ctx, "", &domain.Property{ID: "p"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := repo.GetAlertRule(ctx, "", "rule"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
