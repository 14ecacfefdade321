package match

import (
	"context"
	"testing"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:       "rule-001",
		Name:     "Blair County deals",
		Criteria: domain.MatchCriteria{CountyIDs: []string{"county-blair"}},
		Enabled:  true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadEmptyRuleRejected(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:      "rule-empty",
		Name:    "No criteria",
		Enabled: true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for rule with no criteria")
	}
	if err := engine.ValidateRule(rule); err == nil {
		t.Error("expected validation error for rule with no criteria")
	}
}

func TestLoadInvalidExpression(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "rule-bad-cel",
		Name:       "Broken filter",
		Criteria:   domain.MatchCriteria{MaxBid: fptr(10000)},
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestNonBoolExpressionRejected(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "rule-non-bool",
		Name:       "Numeric filter",
		Criteria:   domain.MatchCriteria{MaxBid: fptr(10000)},
		Expression: "total_due + 1.0",
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err == nil {
		t.Error("expected error for non-bool filter expression")
	}
}

func TestAdvancedFilter(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "rule-filtered",
		Name:       "Cheap per acre",
		Criteria:   domain.MatchCriteria{MaxBid: fptr(10000)},
		Expression: "has_lot_size && total_due / lot_size_acres < 10000.0",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	t.Run("FilterPasses", func(t *testing.T) {
		p := domain.MatchableProperty{
			ID:           "prop-cheap",
			CountyID:     "county-blair",
			TotalDue:     fptr(5000),
			LotSizeAcres: fptr(1.0),
		}

		result, ok := engine.EvaluateRule("rule-filtered", p)
		if !ok {
			t.Fatal("rule not loaded")
		}
		if !result.Matches {
			t.Error("expected match when criteria and filter both pass")
		}
	})

	t.Run("FilterRejects", func(t *testing.T) {
		p := domain.MatchableProperty{
			ID:           "prop-expensive",
			CountyID:     "county-blair",
			TotalDue:     fptr(9000),
			LotSizeAcres: fptr(0.25),
		}

		result, ok := engine.EvaluateRule("rule-filtered", p)
		if !ok {
			t.Fatal("rule not loaded")
		}
		if result.Matches {
			t.Error("expected filter to reject high price per acre")
		}
		// The weighted score reflects criteria only, not the filter
		if result.Score != 100.0 {
			t.Errorf("filter must not affect score, got %.1f", result.Score)
		}
	})

	t.Run("MissingDataFailsFilter", func(t *testing.T) {
		p := domain.MatchableProperty{
			ID:       "prop-no-lot",
			CountyID: "county-blair",
			TotalDue: fptr(5000),
		}

		result, _ := engine.EvaluateRule("rule-filtered", p)
		if result.Matches {
			t.Error("expected has_lot_size guard to reject missing data")
		}
	})
}

func TestEvaluateAll(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rules := []*domain.AlertRule{
		{
			ID:       "rule-a",
			Criteria: domain.MatchCriteria{CountyIDs: []string{"county-blair"}},
			Enabled:  true,
		},
		{
			ID:       "rule-b",
			Criteria: domain.MatchCriteria{ScoreThreshold: fptr(120)},
			Enabled:  true,
		},
		{
			ID:       "rule-disabled",
			Criteria: domain.MatchCriteria{MaxBid: fptr(1)},
			Enabled:  false,
		},
	}
	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if engine.RulesCount() != 2 {
		t.Fatalf("expected 2 loaded rules, got %d", engine.RulesCount())
	}

	p := domain.MatchableProperty{
		ID:         "prop-001",
		CountyID:   "county-blair",
		TotalScore: fptr(85),
	}

	results := engine.EvaluateAll(context.Background(), p)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byRule := make(map[string]domain.MatchResult, len(results))
	for _, rm := range results {
		byRule[rm.Rule.ID] = rm.Result
	}

	if !byRule["rule-a"].Matches {
		t.Error("expected rule-a to match")
	}
	if byRule["rule-b"].Matches {
		t.Error("expected rule-b to fail its score threshold")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	first := &domain.AlertRule{
		ID:       "rule-old",
		Criteria: domain.MatchCriteria{MaxBid: fptr(5000)},
		Enabled:  true,
	}
	engine.LoadRule(first)

	replacement := []*domain.AlertRule{
		{
			ID:       "rule-new",
			Criteria: domain.MatchCriteria{MinAcres: fptr(1.0)},
			Enabled:  true,
		},
	}
	if err := engine.ReloadRules(replacement); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	if _, ok := engine.EvaluateRule("rule-old", domain.MatchableProperty{}); ok {
		t.Error("old rule must be gone after reload")
	}
	if _, ok := engine.EvaluateRule("rule-new", domain.MatchableProperty{}); !ok {
		t.Error("new rule must be loaded after reload")
	}
}

func TestUnloadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:       "rule-gone",
		Criteria: domain.MatchCriteria{MaxBid: fptr(5000)},
		Enabled:  true,
	}
	engine.LoadRule(rule)
	engine.UnloadRule("rule-gone")

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules after unload, got %d", engine.RulesCount())
	}
}
